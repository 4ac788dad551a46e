package webapp

const indexTemplate = `<!DOCTYPE html>
<html>
<head>
<title>MitreHunter</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; vertical-align: top; }
th { background: #f0f0f0; }
form { margin-bottom: 1.5em; }
label { margin-right: 1em; }
.truncated { color: #a60; }
.error { color: #a00; }
</style>
</head>
<body>
<h1>MitreHunter</h1>
<p>Query MITRE ATT&amp;CK techniques by data source, tactic, threat actor, and platform.</p>
<form method="get" action="/">
  <label>Data source
    <select name="data_source">
      <option value="">All</option>
      {{$sel := .Selected}}
      {{range .DataSources}}<option value="{{.}}" {{if eq . (index $sel "data_source")}}selected{{end}}>{{.}}</option>{{end}}
    </select>
  </label>
  <label>Tactic
    <select name="tactic">
      <option value="">All</option>
      {{range .Tactics}}<option value="{{.}}" {{if eq . (index $sel "tactic")}}selected{{end}}>{{.}}</option>{{end}}
    </select>
  </label>
  <label>Threat actor
    <select name="actor">
      <option value="">All</option>
      {{range .Actors}}<option value="{{.}}" {{if eq . (index $sel "actor")}}selected{{end}}>{{.}}</option>{{end}}
    </select>
  </label>
  <label>Platform <input type="text" name="platform" value="{{index $sel "platform"}}"></label>
  <label>Keyword <input type="text" name="keyword" value="{{.Keyword}}"></label>
  <button type="submit">Filter</button>
</form>

{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Queried}}
<h2>Found {{.Result.TotalMatched}} techniques</h2>
{{if .Result.Truncated}}<p class="truncated">Results truncated to {{len .Result.Techniques}} of {{.Result.TotalMatched}} matches.</p>{{end}}
<table>
  <tr><th>ID</th><th>Name</th><th>Tactics</th><th>Platforms</th></tr>
  {{range .Result.Techniques}}
  <tr>
    <td><a href="/technique?id={{.ExternalID}}">{{.ExternalID}}</a></td>
    <td>{{.Name}}</td>
    <td>{{range $i, $t := .Tactics}}{{if $i}}, {{end}}{{$t}}{{end}}</td>
    <td>{{range $i, $p := .Platforms}}{{if $i}}, {{end}}{{$p}}{{end}}</td>
  </tr>
  {{end}}
</table>
{{end}}
</body>
</html>`

const techniqueTemplate = `<!DOCTYPE html>
<html>
<head>
<title>{{.Technique.ExternalID}}: {{.Technique.Name}}</title>
<style>
body { font-family: sans-serif; margin: 2em; max-width: 60em; }
dt { font-weight: bold; margin-top: 0.8em; }
</style>
</head>
<body>
<p><a href="/">&larr; back to search</a></p>
<h1>{{.Technique.ExternalID}}: {{.Technique.Name}}</h1>
<dl>
  <dt>Tactics</dt><dd>{{range $i, $t := .Technique.Tactics}}{{if $i}}, {{end}}{{$t}}{{end}}</dd>
  <dt>Platforms</dt><dd>{{range $i, $p := .Technique.Platforms}}{{if $i}}, {{end}}{{$p}}{{end}}</dd>
  <dt>Data sources</dt><dd>{{range $i, $d := .DataSources}}{{if $i}}, {{end}}{{$d}}{{end}}</dd>
  <dt>Threat actors</dt><dd>{{range $i, $a := .Actors}}{{if $i}}, {{end}}{{$a}}{{end}}</dd>
  <dt>Mitigations</dt><dd>{{range $i, $m := .Mitigations}}{{if $i}}, {{end}}{{$m}}{{end}}</dd>
  {{if .Technique.URL}}<dt>Reference</dt><dd><a href="{{.Technique.URL}}">{{.Technique.URL}}</a></dd>{{end}}
</dl>
<h2>Description</h2>
<p>{{.Technique.Description}}</p>
</body>
</html>`
