package classify

// Catalogs are kept as plain data, separate from the detection logic in
// classify.go, per the open question in spec.md §9: the exact phrase set
// is hand-curated and expected to evolve without touching the matcher.

// titlePreambles are substrings that, when found in a system prompt or
// the first user message, mark a request as asking for a short
// conversation title.
var titlePreambles = []string{
	"summarize this conversation in",
	"provide a short title",
	"generate a concise title",
	"give this conversation a title",
	"write a title for this conversation",
	"respond with a title",
}

// suggestionPreambles are substrings that mark a request as asking for a
// list of follow-up suggestions.
var suggestionPreambles = []string{
	"suggest 3 follow-up",
	"suggest follow-up questions",
	"what should i ask next",
	"generate follow-up suggestions",
	"list possible next steps the user might ask",
}

// historicalPreambles are substrings that mark a request as asking for a
// retrospective summary of a long conversation.
var historicalPreambles = []string{
	"summarize what we've done so far",
	"provide a retrospective",
	"recap the conversation history",
	"summarize the session so far",
	"what has been accomplished in this conversation",
}

// filepathExtractionPreambles mark a request asking to extract file
// paths out of raw command output.
var filepathExtractionPreambles = []string{
	"extract the file paths",
	"list the file paths mentioned",
	"extract file paths from the following output",
}

// filepathExtractionTools are tool names whose presence alongside a
// filepathExtractionPreambles match confirms the filepath_extraction tag.
var filepathExtractionTools = []string{
	"Grep",
	"Glob",
	"Bash",
}

// fastPrefixCommands are recognized leading shell-command tokens. Each
// entry includes its trailing separator (a space) so prefix matching
// never fires on a longer, unrelated word (e.g. "gitk" vs "git ").
var fastPrefixCommands = []string{
	"git ",
	"npm ",
	"npx ",
	"yarn ",
	"pnpm ",
	"cargo ",
	"go ",
	"ls ",
	"cd ",
	"cat ",
	"grep ",
	"make ",
	"docker ",
	"kubectl ",
}

// quotaProbePattern matches the leading token of a minimal credential or
// quota probe sent by the client.
const quotaProbePattern = `(?i)^(ping|test|quota|probe)\b`
