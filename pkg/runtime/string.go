package runtime

import (
	"strconv"
	"strings"

	"microjs/pkg/context"
	"microjs/pkg/value"
	"microjs/pkg/vm"
)

// installString wires String.prototype's instance methods (crabquick's
// builtins/string.rs, translated from its byte-index Rust string slicing
// to rune-indexed Go slicing — JS string indices are UTF-16 code units,
// and runes are the closer of Go's two native granularities) and the
// String.fromCharCode/fromCodePoint statics.
func installString(ctx *context.Context, v *vm.VM) error {
	proto, err := ctx.NewObjectWithProto(ctx.ObjectProto)
	if err != nil {
		return err
	}
	ctx.StringProto = proto

	methods := []struct {
		name   string
		length int
		fn     vm.NativeFunc
	}{
		{"charAt", 1, stringCharAt},
		{"charCodeAt", 1, stringCharCodeAt},
		{"codePointAt", 1, stringCodePointAt},
		{"indexOf", 1, stringIndexOf},
		{"lastIndexOf", 1, stringLastIndexOf},
		{"slice", 2, stringSlice},
		{"substring", 2, stringSubstring},
		{"substr", 2, stringSubstr},
		{"toLowerCase", 0, stringToLowerCase},
		{"toUpperCase", 0, stringToUpperCase},
		{"trim", 0, stringTrim},
		{"trimStart", 0, stringTrimStart},
		{"trimEnd", 0, stringTrimEnd},
		{"split", 2, stringSplit},
		{"replace", 2, stringReplace},
		{"replaceAll", 2, stringReplaceAll},
		{"includes", 1, stringIncludes},
		{"startsWith", 1, stringStartsWith},
		{"endsWith", 1, stringEndsWith},
		{"concat", 1, stringConcat},
		{"repeat", 1, stringRepeat},
		{"padStart", 2, stringPadStart},
		{"padEnd", 2, stringPadEnd},
		{"toString", 0, stringToString},
	}
	for _, m := range methods {
		if err := defineMethod(ctx, v, proto, m.name, m.length, m.fn); err != nil {
			return err
		}
	}

	ctor, err := newConstructor(ctx, proto)
	if err != nil {
		return err
	}
	if err := defineMethod(ctx, v, ctor, "fromCharCode", 1, stringFromCharCode); err != nil {
		return err
	}
	if err := defineMethod(ctx, v, ctor, "fromCodePoint", 1, stringFromCodePoint); err != nil {
		return err
	}
	return ctx.SetGlobalProperty("String", ctor)
}

func thisString(vmm *vm.VM, this value.Value) (string, error) {
	return vmm.ToString(this)
}

func stringCharAt(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	idxF, err := vmm.ToNumber(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	runes := []rune(s)
	i := int(idxF)
	if i < 0 || i >= len(runes) {
		return vmm.Context().NewString("")
	}
	return vmm.Context().NewString(string(runes[i]))
}

func stringCharCodeAt(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	idxF, err := vmm.ToNumber(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	runes := []rune(s)
	i := int(idxF)
	if i < 0 || i >= len(runes) {
		return vmm.Context().NewNumber(nanValue())
	}
	return value.FromInt(int64(runes[i])), nil
}

func stringCodePointAt(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	return stringCharCodeAt(vmm, this, args)
}

func stringIndexOf(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	search, err := vmm.ToString(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	runes := []rune(s)
	start := 0
	if len(args) > 1 {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		start = int(f)
		if start < 0 {
			start = 0
		}
	}
	if start >= len(runes) {
		if search == "" {
			return value.FromInt(int64(len(runes))), nil
		}
		return value.FromInt(-1), nil
	}
	pos := strings.Index(string(runes[start:]), search)
	if pos < 0 {
		return value.FromInt(-1), nil
	}
	return value.FromInt(int64(start + byteOffsetToRuneOffset(string(runes[start:]), pos))), nil
}

// byteOffsetToRuneOffset converts a byte offset returned by strings.Index/
// LastIndex (into s) to the equivalent rune count, since JS string indices
// are code-unit based rather than byte based.
func byteOffsetToRuneOffset(s string, byteOffset int) int {
	return len([]rune(s[:byteOffset]))
}

func stringLastIndexOf(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	search, err := vmm.ToString(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	runes := []rune(s)
	end := len(runes)
	if len(args) > 1 {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		end = int(f)
		if end > len(runes) {
			end = len(runes)
		}
		if end < 0 {
			end = 0
		}
	}
	pos := strings.LastIndex(string(runes[:end]), search)
	if pos < 0 {
		return value.FromInt(-1), nil
	}
	return value.FromInt(int64(byteOffsetToRuneOffset(string(runes[:end]), pos))), nil
}

func stringSlice(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	runes := []rune(s)
	n := len(runes)
	start := 0
	if !arg(args, 0).IsUndefined() {
		f, err := vmm.ToNumber(args[0])
		if err != nil {
			return value.Undefined, err
		}
		start = normalizeIndex(int(f), n)
	}
	end := n
	if !arg(args, 1).IsUndefined() {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		end = normalizeIndex(int(f), n)
	}
	if start >= end {
		return vmm.Context().NewString("")
	}
	return vmm.Context().NewString(string(runes[start:end]))
}

func stringSubstring(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	runes := []rune(s)
	n := len(runes)
	clamp := func(i int) int {
		if i < 0 {
			return 0
		}
		if i > n {
			return n
		}
		return i
	}
	start := 0
	if !arg(args, 0).IsUndefined() {
		f, err := vmm.ToNumber(args[0])
		if err != nil {
			return value.Undefined, err
		}
		start = clamp(int(f))
	}
	end := n
	if !arg(args, 1).IsUndefined() {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		end = clamp(int(f))
	}
	if start > end {
		start, end = end, start
	}
	return vmm.Context().NewString(string(runes[start:end]))
}

func stringSubstr(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	runes := []rune(s)
	n := len(runes)
	start := 0
	if !arg(args, 0).IsUndefined() {
		f, err := vmm.ToNumber(args[0])
		if err != nil {
			return value.Undefined, err
		}
		start = int(f)
		if start < 0 {
			start = n + start
			if start < 0 {
				start = 0
			}
		} else if start > n {
			start = n
		}
	}
	length := n - start
	if !arg(args, 1).IsUndefined() {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		length = int(f)
		if length < 0 {
			length = 0
		}
	}
	end := start + length
	if end > n {
		end = n
	}
	return vmm.Context().NewString(string(runes[start:end]))
}

func stringToLowerCase(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewString(strings.ToLower(s))
}

func stringToUpperCase(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewString(strings.ToUpper(s))
}

func stringTrim(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewString(strings.TrimSpace(s))
}

func stringTrimStart(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewString(strings.TrimLeft(s, " \t\n\r\v\f"))
}

func stringTrimEnd(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewString(strings.TrimRight(s, " \t\n\r\v\f"))
}

// stringSplit implements String.prototype.split, building a proper array
// (linked to ArrayProto, unlike crabquick's split which hand-walks the
// global "Array"/"prototype" properties to find the same link — pkg/context
// already exposes NewArray for exactly this).
func stringSplit(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	ctx := vmm.Context()
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}

	sepArg := arg(args, 0)
	var parts []string
	if sepArg.IsUndefined() {
		parts = []string{s}
	} else {
		sep, err := vmm.ToString(sepArg)
		if err != nil {
			return value.Undefined, err
		}
		if sep == "" {
			for _, r := range s {
				parts = append(parts, string(r))
			}
		} else {
			parts = strings.Split(s, sep)
		}
	}

	limit := len(parts)
	if !arg(args, 1).IsUndefined() {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		if int(f) < limit {
			limit = int(f)
		}
	}
	if limit < 0 {
		limit = 0
	}
	parts = parts[:limit]

	elems := make([]value.Value, len(parts))
	for i, p := range parts {
		sv, err := ctx.NewString(p)
		if err != nil {
			return value.Undefined, err
		}
		elems[i] = sv
	}
	return newArray(ctx, elems)
}

func stringReplace(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	search, err := vmm.ToString(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	replacement, err := vmm.ToString(arg(args, 1))
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewString(strings.Replace(s, search, replacement, 1))
}

func stringReplaceAll(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	search, err := vmm.ToString(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	replacement, err := vmm.ToString(arg(args, 1))
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewString(strings.ReplaceAll(s, search, replacement))
}

func stringIncludes(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	search, err := vmm.ToString(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	runes := []rune(s)
	start := 0
	if len(args) > 1 {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		start = int(f)
		if start < 0 {
			start = 0
		}
	}
	if start >= len(runes) {
		return value.Bool(search == ""), nil
	}
	return value.Bool(strings.Contains(string(runes[start:]), search)), nil
}

func stringStartsWith(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	search, err := vmm.ToString(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	runes := []rune(s)
	start := 0
	if len(args) > 1 {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		start = int(f)
		if start < 0 {
			start = 0
		}
	}
	if start >= len(runes) {
		return value.Bool(search == ""), nil
	}
	return value.Bool(strings.HasPrefix(string(runes[start:]), search)), nil
}

func stringEndsWith(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	search, err := vmm.ToString(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	runes := []rune(s)
	end := len(runes)
	if len(args) > 1 {
		f, err := vmm.ToNumber(args[1])
		if err != nil {
			return value.Undefined, err
		}
		end = int(f)
		if end > len(runes) {
			end = len(runes)
		}
		if end < 0 {
			end = 0
		}
	}
	return value.Bool(strings.HasSuffix(string(runes[:end]), search)), nil
}

// stringConcat mirrors crabquick's concat, which treats every argument
// kind (string/number/null/undefined/bool/object) as directly
// to-string-coercible — the same fallback ToString already implements.
func stringConcat(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	var b strings.Builder
	b.WriteString(s)
	for _, a := range args {
		as, err := vmm.ToString(a)
		if err != nil {
			return value.Undefined, err
		}
		b.WriteString(as)
	}
	return vmm.Context().NewString(b.String())
}

func stringRepeat(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	f, err := vmm.ToNumber(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	n := int(f)
	if n < 0 {
		return value.Undefined, vmm.ThrowErrorf("RangeError", "Invalid count value: %s", strconv.FormatFloat(f, 'g', -1, 64))
	}
	return vmm.Context().NewString(strings.Repeat(s, n))
}

func stringPadStart(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	return stringPad(vmm, this, args, true)
}

func stringPadEnd(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	return stringPad(vmm, this, args, false)
}

func stringPad(vmm *vm.VM, this value.Value, args []value.Value, start bool) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	targetF, err := vmm.ToNumber(arg(args, 0))
	if err != nil {
		return value.Undefined, err
	}
	target := int(targetF)
	pad := " "
	if !arg(args, 1).IsUndefined() {
		pad, err = vmm.ToString(args[1])
		if err != nil {
			return value.Undefined, err
		}
	}
	runes := []rune(s)
	if pad == "" || len(runes) >= target {
		return vmm.Context().NewString(s)
	}
	need := target - len(runes)
	padRunes := []rune(strings.Repeat(pad, need/len([]rune(pad))+1))[:need]
	if start {
		return vmm.Context().NewString(string(padRunes) + s)
	}
	return vmm.Context().NewString(s + string(padRunes))
}

func stringToString(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	s, err := thisString(vmm, this)
	if err != nil {
		return value.Undefined, err
	}
	return vmm.Context().NewString(s)
}

func stringFromCharCode(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	var b strings.Builder
	for _, a := range args {
		f, err := vmm.ToNumber(a)
		if err != nil {
			return value.Undefined, err
		}
		b.WriteRune(rune(uint16(int64(f))))
	}
	return vmm.Context().NewString(b.String())
}

func stringFromCodePoint(vmm *vm.VM, this value.Value, args []value.Value) (value.Value, error) {
	var b strings.Builder
	for _, a := range args {
		f, err := vmm.ToNumber(a)
		if err != nil {
			return value.Undefined, err
		}
		b.WriteRune(rune(int64(f)))
	}
	return vmm.Context().NewString(b.String())
}
