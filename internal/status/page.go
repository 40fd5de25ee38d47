package status

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"
)

// dashboard renders the read-only status page. It shows the snapshot at
// page load; the inline script keeps it current over /events.
func dashboard(snap func() []byte) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, dashboardHead); err != nil {
			return err
		}
		initial := html.EscapeString(string(snap()))
		if _, err := fmt.Fprintf(w, dashboardBody, initial); err != nil {
			return err
		}
		return nil
	})
}

const dashboardHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>tagplay status</title>
<style>
  body { font-family: system-ui, sans-serif; background: #111; color: #eee; margin: 2rem; }
  h1 { font-size: 1.2rem; letter-spacing: 2px; text-transform: uppercase; color: #9af; }
  pre { background: #1b1b1b; padding: 1rem; border-radius: 8px; overflow-x: auto; }
  .muted { color: #888; font-size: 0.85rem; }
</style>
</head>
`

const dashboardBody = `<body>
<h1>tagplay</h1>
<p class="muted">Read-only playback status. Updates live while the kiosk runs.</p>
<pre id="state">%s</pre>
<p class="muted">Recent scans: <a href="/api/scans">/api/scans</a> &middot;
Segments: <a href="/api/segments">/api/segments</a> &middot;
Metrics: <a href="/metrics">/metrics</a></p>
<script>
  var es = new EventSource('/events');
  es.addEventListener('playback', function (ev) {
    document.getElementById('state').textContent =
      JSON.stringify(JSON.parse(ev.data), null, 2);
  });
</script>
</body>
</html>
`
