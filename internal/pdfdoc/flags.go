package pdfdoc

// AnnotFlagHidden is the /F bit of an annotation that must not be drawn.
const AnnotFlagHidden = 1 << 1

// Field flags (/Ff) shared by the form readers and writers.
const (
	FlagReadOnly    = 1 << 0
	FlagRequired    = 1 << 1
	FlagMultiline   = 1 << 12
	FlagNoToggleOff = 1 << 14
	FlagRadio       = 1 << 15
	FlagPushbutton  = 1 << 16
	FlagCombo       = 1 << 17
	FlagEdit        = 1 << 18
)
