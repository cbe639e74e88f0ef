package tablepb

import "github.com/tablepb/tablepb/internal/vm"

type compileOptions struct {
	maxDepth int
}

func defaultCompileOptions() compileOptions {
	return compileOptions{maxDepth: vm.DefaultMaxDepth}
}

// CompileOption configures [Compile], [CompileFor], and [CompileFromBytes].
type CompileOption func(*compileOptions)

// WithMaxDepth bounds the nesting depth any [Decoder] built from the
// resulting [Type] will accept before failing with [LimitExceeded] (spec
// §7). The default is [vm.DefaultMaxDepth].
func WithMaxDepth(depth int) CompileOption {
	return func(o *compileOptions) { o.maxDepth = depth }
}

// UnmarshalOption configures a single [Type.Unmarshal] or [Type.NewDecoder]
// call, overriding the [Type]'s compiled defaults for that call only.
type UnmarshalOption func(*compileOptions)

// WithDecodeMaxDepth overrides the nesting-depth limit for one decode.
func WithDecodeMaxDepth(depth int) UnmarshalOption {
	return func(o *compileOptions) { o.maxDepth = depth }
}
