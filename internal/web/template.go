package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/crowd-signal/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"state": func(running bool) string {
		if running {
			return "RUNNING"
		}
		return "STOPPED"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Crowd Signal</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.high { font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.swatch { display: inline-block; width: 10px; height: 10px; margin-right: 6px; vertical-align: middle; border: 1px solid #444; }
</style>
</head>
<body>
<h1>Crowd Signal</h1>

<h2>Signal</h2>
<table>
{{if .Observed}}<tr><th>Crowd Count</th><td id="count">{{.Count}}</td></tr>
<tr><th>Status</th><td id="status" class="{{if eq .Decision.Status "HIGH"}}high{{end}}"><span class="swatch" style="background: {{.Decision.Color.Hex}}"></span>{{.Decision.Status.Label}}</td></tr>
<tr><th>Next Green</th><td id="green">{{.Decision.GreenDuration}} seconds</td></tr>
{{else}}<tr><th>Status</th><td id="status" class="unknown">UNKNOWN</td></tr>
{{end}}<tr><th>Last Logged</th><td>{{.LastLogged}}</td></tr>
<tr><th>Loop</th><td>{{state .Running}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Cycles</th><td>{{.Cycles}}</td></tr>
<tr><th>Transitions</th><td>{{.Transitions}}</td></tr>
<tr><th>Log Failures</th><td>{{.LogFailures}}</td></tr>
<tr><th>LOW</th><td>{{.Bands.Low}}</td></tr>
<tr><th>DEFAULT</th><td>{{.Bands.Default}}</td></tr>
<tr><th>HIGH</th><td>{{.Bands.High}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Run</th><td>{{.RunID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Thresholds</th><td>low &le; {{.Config.Thresholds.Low}}, high &gt; {{.Config.Thresholds.High}}</td></tr>
<tr><th>Green</th><td>{{.Config.Thresholds.BaseDuration}}s +{{.Config.Thresholds.Increment}}/-{{.Config.Thresholds.Decrement}}</td></tr>
<tr><th>Source</th><td>{{.Config.Source}}</td></tr>
<tr><th>Log File</th><td>{{.Config.LogFile}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
