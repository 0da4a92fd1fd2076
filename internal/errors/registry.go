package errors

import "sort"

// Codes used by the engine and CLI.
const (
	CodeUnknownContext    = "H001"
	CodeUnknownAction     = "H002"
	CodeUnknownEffect     = "H003"
	CodeOutsideContext    = "H004"
	CodeInvalidHandler    = "H005"
	CodeSyntax            = "H010"
	CodeCircularTrigger   = "H012"
	CodeInvalidMiddleware = "H020"
	CodeWriteGuard        = "H030"
	CodeHandlerFailed     = "H031"
	CodeHandlerPanicked   = "H032"
	CodeImportFailed      = "H040"
	CodeInvalidConfig     = "H050"
	CodeConfigNotFound    = "H051"
	CodeRuntimeLifecycle  = "H060"
)

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Binding (H001-H009)
	CodeUnknownContext: {
		Category: CategoryBinding,
		Message:  "Unknown context template",
		Detail:   "The context marker names a template that is neither registered nor importable.",
	},
	CodeUnknownAction: {
		Category: CategoryBinding,
		Message:  "Unknown action",
		Detail:   "The attribute names an action the context template does not declare.",
	},
	CodeUnknownEffect: {
		Category: CategoryBinding,
		Message:  "Unknown effect",
		Detail:   "The attribute names an effect the context template does not declare.",
	},
	CodeOutsideContext: {
		Category: CategoryBinding,
		Message:  "Node outside any context",
		Detail:   "Action and effect attributes must sit on or below a context marker.",
	},
	CodeInvalidHandler: {
		Category: CategoryBinding,
		Message:  "Invalid handler definition",
		Detail:   "An action or effect must declare exactly one of Handle or HandleAsync.",
	},

	// Grammar (H010-H019)
	CodeSyntax: {
		Category: CategoryGrammar,
		Message:  "Invalid attribute syntax",
		Detail:   `Statements look like "<handlers> on <triggers>", separated by ";". Handlers are joined by " and ", triggers by " or ".`,
	},
	CodeCircularTrigger: {
		Category: CategoryGrammar,
		Message:  "Circular action trigger",
		Detail:   "An action is triggered by an action declared in the same attribute, which would dispatch forever.",
	},

	// Middleware (H020-H029)
	CodeInvalidMiddleware: {
		Category: CategoryBinding,
		Message:  "Invalid middleware",
		Detail:   "Middleware entries must be created with NewMiddleware or NewAsyncMiddleware.",
	},

	// Dispatch (H030-H039)
	CodeWriteGuard: {
		Category: CategoryDispatch,
		Message:  "Write to guarded state",
		Detail:   "Effects read data and stores through a read-only view unless they set AllowStateMutations.",
	},
	CodeHandlerFailed: {
		Category: CategoryDispatch,
		Message:  "Handler failed",
		Detail:   "An action, effect or middleware returned an error.",
	},
	CodeHandlerPanicked: {
		Category: CategoryDispatch,
		Message:  "Async handler panicked",
		Detail:   "A handler or middleware running off the runtime loop panicked. The panic was recovered and the dispatch released.",
	},

	// Import (H040-H049)
	CodeImportFailed: {
		Category: CategoryImport,
		Message:  "Template import failed",
		Detail:   "The context template could not be loaded from its import callback or plugin path.",
	},

	// Config (H050-H059)
	CodeInvalidConfig: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The hctx configuration file contains an invalid value.",
	},
	CodeConfigNotFound: {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No hctx.json or hctx.yaml was found in the directory or its parents.",
	},

	// Runtime (H060-H069)
	CodeRuntimeLifecycle: {
		Category: CategoryDispatch,
		Message:  "Invalid runtime state",
		Detail:   "The runtime was started twice or used after Stop.",
	},
}

// GetAllCodes returns all registered error codes in sorted order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
