package config

// ToolName is used in log prefixes and the CLI usage line.
const ToolName = "typeinfer"

// ProgramFileExtensions are the recognized typed-call IR file extensions.
var ProgramFileExtensions = []string{".yaml", ".yml"}

// ConfigFileNames are searched (in order) by FindConfig.
var ConfigFileNames = []string{"typeinfer.yaml", "typeinfer.yml"}

// Analysis defaults.
const (
	DefaultIterationBudget = 10000
	DefaultWorkers         = 4
	DefaultLanguageVersion = "1.9"

	// StrictLanguageConstraint selects language versions that turn empty
	// intersection warnings into errors.
	StrictLanguageConstraint = ">= 2.0"
)

// Built-in class names.
const (
	AnyClassName          = "Any"
	NothingClassName      = "Nothing"
	UnitClassName         = "Unit"
	IntClassName          = "Int"
	LongClassName         = "Long"
	DoubleClassName       = "Double"
	NumberClassName       = "Number"
	StringClassName       = "String"
	CharSequenceClassName = "CharSequence"
	ComparableClassName   = "Comparable"
	BooleanClassName      = "Boolean"
	ListClassName         = "List"
	MutableListClassName  = "MutableList"
	FunctionClassPrefix   = "Function"
)

// MaxFunctionArity is the largest FunctionN class registered in the prelude.
const MaxFunctionArity = 3
