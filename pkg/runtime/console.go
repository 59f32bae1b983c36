package runtime

import (
	"strings"

	"microjs/pkg/context"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// installConsole wires console.log/info/warn/error/debug onto the
// global object. crabquick's init.rs never installs a console at all —
// its native_functions module is filtered out of the retrieval pack, so
// there's nothing to generalize from directly — but every other example
// in the pack reaches for zap for structured logging, so console's
// output goes through ctx.Log (the *zap.Logger every Context already
// carries, see context.Context.Log's doc comment) rather than a raw
// stdout write.
func installConsole(ctx *context.Context, v *vm.VM) error {
	console, err := ctx.NewObject()
	if err != nil {
		return err
	}

	methods := []struct {
		name string
		fn   vm.NativeFunc
	}{
		{"log", consoleLog("info")},
		{"info", consoleLog("info")},
		{"warn", consoleLog("warn")},
		{"error", consoleLog("error")},
		{"debug", consoleLog("debug")},
	}
	for _, m := range methods {
		if err := defineMethod(ctx, v, console, m.name, 0, m.fn); err != nil {
			return err
		}
	}
	return ctx.SetGlobalProperty("console", console)
}

// consoleLog returns the native body for one console method: stringify
// every argument with ToString (so null and undefined print as "null"
// and "undefined", and plain objects as "[object Object]") and join with
// single spaces, then emit at the given zap level.
func consoleLog(level string) vm.NativeFunc {
	return func(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			s, err := vmm.ToString(a)
			if err != nil {
				return value.Undefined, err
			}
			parts[i] = s
		}
		msg := strings.Join(parts, " ")
		logger := vmm.Context().Log
		switch level {
		case "warn":
			logger.Warn(msg)
		case "error":
			logger.Error(msg)
		case "debug":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
		return value.Undefined, nil
	}
}
