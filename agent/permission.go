package agent

// NoToolPermissions returns Amp permission rules that deny every tool.
// Explaining a failure only needs the text of the request, so the agent
// is never allowed to read files, run commands or spawn subagents.
func NoToolPermissions() []string {
	return []string{
		`reject Read`,
		`reject Grep`,
		`reject glob`,
		`reject finder`,
		`reject edit_file`,
		`reject create_file`,
		`reject undo_edit`,
		`reject web_search`,
		`reject read_web_page`,
		`reject Task`,
		`reject handoff`,
		`reject Bash`,
	}
}
