package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/rotary-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		switch {
		case days > 0:
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		case h > 0:
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		case m > 0:
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"bits": func(e status.Encoder) string {
		return fmt.Sprintf("%03b", uint8(e.Bits))
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Rotary Sensor</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.pressed { color: green; font-weight: bold; }
.released { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Rotary Sensor{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Encoders</h2>
<table>
<tr><th>Name</th><th>Pins</th><th>Count</th><th>State</th><th>Button</th><th>Mode</th><th>CW/CCW</th><th>Press/Release</th></tr>
{{range .Encoders}}<tr id="enc-{{.Name}}">
<td>{{.Name}}</td>
<td>{{.Pins.CLK}}/{{.Pins.DIR}}/{{.Pins.BTN}}</td>
<td class="count">{{.Count}}</td>
<td>{{bits .}}</td>
<td class="button {{if eq (printf "%s" .Button) "PRESSED"}}pressed{{else}}released{{end}}">{{.Button}}</td>
<td>{{if .Interrupts}}interrupt{{else}}polled{{end}}</td>
<td>{{.Counts.CW}}/{{.Counts.CCW}}</td>
<td>{{.Counts.Press}}/{{.Counts.Release}}</td>
</tr>
{{else}}<tr><td colspan="8">no encoders</td></tr>
{{end}}</table>
<p>Dispatch slots: {{.SlotsInUse}} of {{.SlotCapacity}} in use</p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.Serial}}<tr><th>Serial</th><td>{{.Config.Serial}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Chip</th><td>{{.Config.Chip}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "input/rotary/+/events";
  var dot = document.getElementById("live-dot");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });
  client.on("reconnect", function() { setDot("pending", "reconnecting"); });
  client.on("offline", function() { setDot("err", "offline"); });
  client.on("error", function() { setDot("err", "error"); });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (!msg.rotary) return;
      var row = document.getElementById("enc-" + msg.rotary.encoder);
      if (!row) return;
      row.querySelector(".count").textContent = msg.rotary.count;
      var btn = row.querySelector(".button");
      btn.textContent = msg.rotary.button;
      btn.className = "button " + (msg.rotary.button === "PRESSED" ? "pressed" : "released");
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
