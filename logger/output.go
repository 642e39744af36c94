package logger

// Output controls what categories of information are shown at each verbosity level.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed regardless of severity.
//
// Verbosity Levels:
//
//	0 (default) - User-facing output only: results, errors with hints, final status
//	1 (-v)      - + Progress, startup info, run summaries
//	2 (-vv)     - + Timing, config loaded, graph store stats
//	3 (-vvv)    - + Cypher statements, clone detail, internal flow
//	4 (-vvvv)   - + Full record dumps

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults    OutputCategory = iota // Ingestion results, command output
	OutputErrors                           // Errors with hints and resolution steps
	OutputUserStatus                       // Final success/failure status

	// Level 1 (-v) - Informational
	OutputProgress      // Progress indicators (e.g., "Ingesting 5/12 sources")
	OutputStartup       // Startup banners, config summary
	OutputOperationInfo // High-level operation summaries

	// Level 2 (-vv) - Detailed
	OutputTiming     // Operation timing (e.g., "record took 42ms")
	OutputConfig     // Config values loaded/applied
	OutputGraphStats // Graph store statistics and connection info

	// Level 3 (-vvv) - Debug
	OutputCypher      // Individual cypher statements executed
	OutputCloneDetail // Remote clone and resolution detail
	OutputInternalOp  // Internal operation flow (function entry/exit)

	// Level 4 (-vvvv) - Full dump
	OutputDataDump // Full record and metadata contents
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputUserStatus: VerbosityUser,

	OutputProgress:      VerbosityInfo,
	OutputStartup:       VerbosityInfo,
	OutputOperationInfo: VerbosityInfo,

	OutputTiming:     VerbosityDebug,
	OutputConfig:     VerbosityDebug,
	OutputGraphStats: VerbosityDebug,

	OutputCypher:      VerbosityTrace,
	OutputCloneDetail: VerbosityTrace,
	OutputInternalOp:  VerbosityTrace,

	OutputDataDump: VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		// Unknown category, default to highest verbosity required
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// categoryNames provides human-readable names for output categories
var categoryNames = map[OutputCategory]string{
	OutputResults:       "results",
	OutputErrors:        "errors",
	OutputUserStatus:    "status",
	OutputProgress:      "progress",
	OutputStartup:       "startup",
	OutputOperationInfo: "operation-info",
	OutputTiming:        "timing",
	OutputConfig:        "config",
	OutputGraphStats:    "graph-stats",
	OutputCypher:        "cypher",
	OutputCloneDetail:   "clone-detail",
	OutputInternalOp:    "internal",
	OutputDataDump:      "data-dump",
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}

// VerbosityDescription returns a description of what's shown at each level
func VerbosityDescription(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "results and errors only"
	case VerbosityInfo:
		return "results, errors, progress, and status"
	case VerbosityDebug:
		return "above + timing, config, graph stats"
	case VerbosityTrace:
		return "above + cypher statements and clone detail"
	case VerbosityAll:
		return "full output including record dumps"
	default:
		if verbosity > VerbosityAll {
			return "maximum verbosity"
		}
		return "unknown verbosity level"
	}
}
