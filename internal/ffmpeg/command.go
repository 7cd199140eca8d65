package ffmpeg

const (
	// MaxCommandLen is the Windows command-line ceiling: CreateProcess
	// rejects command lines longer than 8191 characters.
	MaxCommandLen = 8191

	// PayloadThreshold is the largest estimated inline payload we pass on
	// the command line. Anything above it goes through a script file. The
	// margin under MaxCommandLen absorbs quoting differences between the
	// estimate and the actual argument encoding.
	PayloadThreshold = 8000

	// argOverhead accounts for the rest of the invocation around the
	// filter payload: binary path, io paths, codec flags and the quoting
	// added when the payload is embedded as one argument.
	argOverhead = 500
)

// ExecutionMode selects how the filter payload reaches the media tool.
type ExecutionMode int

const (
	// ModeDirect embeds the filter graph literally in the command line.
	ModeDirect ExecutionMode = iota
	// ModeScriptFile writes the graph to a temp file referenced by path.
	ModeScriptFile
)

func (m ExecutionMode) String() string {
	if m == ModeScriptFile {
		return "script_file"
	}
	return "direct"
}

// EstimateArgLength computes the length the payload would occupy once
// embedded as a single command-line argument, counting characters the shell
// encoding expands at their expanded width. The estimate is deliberately
// conservative: it must never come in under the real length, since an
// under-estimate means a failed invocation at the OS boundary while an
// over-estimate merely takes the safe script-file path.
func EstimateArgLength(payload string) int {
	extra := 0
	for i := 0; i < len(payload); i++ {
		switch payload[i] {
		case '"', '\\', '%', '^':
			extra++
		}
	}
	return len(payload) + extra + argOverhead
}

// SelectMode decides between direct and script-file invocation. Exactly at
// the threshold stays direct; one past it switches over.
func SelectMode(payload string) ExecutionMode {
	if EstimateArgLength(payload) > PayloadThreshold {
		return ModeScriptFile
	}
	return ModeDirect
}

// ExecutionPlan is a fully composed invocation of the media tool.
// Mode is script_file exactly when the estimated payload length exceeds
// PayloadThreshold. ScriptPath is populated by the executor only while a
// script-file invocation is in flight.
type ExecutionPlan struct {
	Mode          ExecutionMode
	Args          []string
	FilterPayload string
	ScriptPath    string
}

// NewPlan builds an ExecutionPlan for args that embed the filter payload
// behind the inline filter flag.
func NewPlan(args []string, payload string) ExecutionPlan {
	return ExecutionPlan{
		Mode:          SelectMode(payload),
		Args:          args,
		FilterPayload: payload,
	}
}

const (
	filterFlag       = "-filter_complex"
	filterScriptFlag = "-filter_complex_script"
)

// substituteScriptFlag rewrites an inline filter invocation into its
// file-based equivalent, replacing the flag and its payload argument with
// the script flag and the file path. All other arguments pass through
// unchanged.
func substituteScriptFlag(args []string, scriptPath string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == filterFlag && i+1 < len(args) {
			out = append(out, filterScriptFlag, scriptPath)
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out
}
