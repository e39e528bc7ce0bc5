package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/BR4Y4NEXE/Datrix/internal/notify"
	"github.com/BR4Y4NEXE/Datrix/internal/store"
)

// DashboardData is everything the overview page shows.
type DashboardData struct {
	Runs          []store.Run
	TotalRuns     int
	Active        int
	MaxConcurrent int
	Notify        notify.Status
}

// Dashboard renders the overview page: run form, live log, and recent runs.
func Dashboard(data DashboardData) templ.Component {
	return page("Datrix", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		hw.raw(`<header><h1>Datrix</h1><p>CSV schema inference and cleaning pipeline</p></header><main>`)

		hw.raw(`<section class="stats">`)
		stat(hw, "Runs", strconv.Itoa(data.TotalRuns))
		stat(hw, "Active", strconv.Itoa(data.Active)+" / "+strconv.Itoa(data.MaxConcurrent))
		stat(hw, "Email", onOff(data.Notify.EmailEnabled && data.Notify.SMTPConfigured))
		stat(hw, "Slack", onOff(data.Notify.SlackEnabled && data.Notify.SlackConfigured))
		hw.raw(`</section>`)

		hw.raw(`<section><h2>Run pipeline</h2>`)
		hw.raw(`<form id="run-form" enctype="multipart/form-data">`)
		hw.raw(`<input type="file" name="file" accept=".csv,.txt,.xlsx"> `)
		hw.raw(`<label><input type="checkbox" name="dry_run" value="true"> Dry run</label> `)
		hw.raw(`<label><input type="checkbox" name="auto_detect" value="true"> Auto-detect today's file</label> `)
		hw.raw(`<button type="submit">Run</button></form>`)
		hw.raw(`<pre id="log"></pre></section>`)

		hw.raw(`<section><h2>Recent runs</h2>`)
		runsTable(hw, data.Runs)
		hw.raw(`</section></main>`)

		hw.raw(`<script>` + dashboardScript + `</script>`)
		return hw.err
	}))
}

func stat(hw *htmlWriter, label, value string) {
	hw.raw(`<div class="stat"><b>`)
	hw.text(value)
	hw.raw(`</b>`)
	hw.text(label)
	hw.raw(`</div>`)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func runsTable(hw *htmlWriter, runs []store.Run) {
	if len(runs) == 0 {
		hw.raw(`<p>No runs yet. Upload a CSV to get started.</p>`)
		return
	}

	hw.raw(`<table><thead><tr><th>Started</th><th>File</th><th>Status</th>`)
	hw.raw(`<th>Read</th><th>Valid</th><th>Rejected</th><th>Inserted</th><th>Updated</th><th>Duration</th></tr></thead><tbody>`)
	for _, run := range runs {
		hw.raw(`<tr><td>`)
		hw.text(run.CreatedAt.Format("2006-01-02 15:04:05"))
		hw.raw(`</td><td>`)
		hw.text(run.FileName)
		if run.DryRun {
			hw.raw(` <small>(dry run)</small>`)
		}
		hw.rawf(`</td><td class="status-%s"`, templ.EscapeString(string(run.Status)))
		if run.ErrorMessage != "" {
			hw.raw(` title="`)
			hw.text(run.ErrorMessage)
			hw.raw(`"`)
		}
		hw.raw(`>`)
		hw.text(string(run.Status))
		hw.rawf(`</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td><td>`,
			run.TotalRead, run.TotalValid, run.TotalRejected, run.Inserted, run.Updated)
		if run.Duration != nil {
			hw.text(strconv.FormatFloat(*run.Duration, 'f', 2, 64) + "s")
		}
		hw.raw(`</td></tr>`)
	}
	hw.raw(`</tbody></table>`)
}

const dashboardScript = `
const form = document.getElementById('run-form');
const log = document.getElementById('log');
form.addEventListener('submit', async (e) => {
  e.preventDefault();
  log.textContent = '';
  const res = await fetch('/pipeline/run', {method: 'POST', body: new FormData(form)});
  const body = await res.json();
  if (!res.ok) { log.textContent = body.message + (body.action ? '\n' + body.action : ''); return; }
  const es = new EventSource('/logs/' + body.run_id);
  es.addEventListener('log', (ev) => { log.textContent += ev.data + '\n'; log.scrollTop = log.scrollHeight; });
  es.addEventListener('complete', () => { es.close(); location.reload(); });
});
`
