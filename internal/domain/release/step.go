package release

// Step identifies a stage of the packaging pipeline.
type Step int

// Pipeline steps in execution order.
const (
	StepStage Step = iota
	StepFiles
	StepLibrary
	StepScripts
	StepOutput
	StepDirs
	StepArchive
	StepCleanup
)

var stepNames = [...]string{
	StepStage:   "stage",
	StepFiles:   "files",
	StepLibrary: "library",
	StepScripts: "scripts",
	StepOutput:  "output",
	StepDirs:    "dirs",
	StepArchive: "archive",
	StepCleanup: "cleanup",
}

// String implements fmt.Stringer.
func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "unknown"
	}

	return stepNames[s]
}
