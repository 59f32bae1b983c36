// Package bytecode defines microjs's instruction set and the
// self-contained bytecode container format it's packaged in
// (SPEC_FULL.md §4.4, §6.1, §6.2).
//
// The opcode numbering and naming follow the source opcode catalogue
// this spec was distilled from (crabquick/bytecode/opcode.rs) rather
// than inventing a fresh assignment, including the numeric gaps between
// families and the opcodes that are reserved but have no VM handler
// (§9): arguments-object construction, spread, class/iterator/generator
// machinery. Those decode and disassemble correctly; pkg/vm throws a
// runtime error if it ever dispatches one.
package bytecode

// Opcode is a single VM instruction.
type Opcode byte

const (
	// ===== Stack manipulation (0-9) =====
	OpDrop  Opcode = 0
	OpDup   Opcode = 1
	OpSwap  Opcode = 2
	OpNip   Opcode = 3
	OpInsert2 Opcode = 4
	OpInsert3 Opcode = 5
	OpPerm3 Opcode = 6
	OpRot3l Opcode = 7
	OpRot3r Opcode = 8
	OpRot4l Opcode = 9

	// ===== Push operations (10-36) =====
	OpUndefined       Opcode = 10
	OpNull            Opcode = 11
	OpPushFalse       Opcode = 12
	OpPushTrue        Opcode = 13
	OpPushI8          Opcode = 14
	OpPushI16         Opcode = 15
	OpPushI32         Opcode = 16
	OpPushConst8      Opcode = 17
	OpPushConst16     Opcode = 18
	OpPushMinus1      Opcode = 19
	OpPush0           Opcode = 20
	OpPush1           Opcode = 21
	OpPush2           Opcode = 22
	OpPush3           Opcode = 23
	OpPush4           Opcode = 24
	OpPush5           Opcode = 25
	OpPush6           Opcode = 26
	OpPush7           Opcode = 27
	OpPushEmptyString Opcode = 28
	OpPushThis        Opcode = 29
	OpPushNaN         Opcode = 30
	OpPushInfinity    Opcode = 31
	OpPushNegInfinity Opcode = 32
	OpPushFunc8       Opcode = 33
	OpPushFunc        Opcode = 34
	OpPushAtomString8  Opcode = 35
	OpPushAtomString16 Opcode = 36

	// ===== Variable access (40-66) =====
	OpGetLoc    Opcode = 40
	OpPutLoc    Opcode = 41
	OpSetLoc    Opcode = 42
	OpGetArg    Opcode = 43
	OpPutArg    Opcode = 44
	OpSetArg    Opcode = 45
	OpGetVarRef Opcode = 46
	OpPutVarRef Opcode = 47
	OpSetVarRef Opcode = 48
	OpGetLoc0   Opcode = 49
	OpGetLoc1   Opcode = 50
	OpGetLoc2   Opcode = 51
	OpGetLoc3   Opcode = 52
	OpPutLoc0   Opcode = 53
	OpPutLoc1   Opcode = 54
	OpPutLoc2   Opcode = 55
	OpPutLoc3   Opcode = 56
	OpSetLoc0   Opcode = 57
	OpSetLoc1   Opcode = 58
	OpSetLoc2   Opcode = 59
	OpSetLoc3   Opcode = 60
	OpGetGlobal8  Opcode = 61
	OpGetGlobal16 Opcode = 62
	OpPutGlobal8  Opcode = 63
	OpPutGlobal16 Opcode = 64
	OpSetGlobal8  Opcode = 65
	OpSetGlobal16 Opcode = 66

	// ===== Property access (70-85) =====
	OpGetField        Opcode = 70
	OpGetField8       Opcode = 71
	OpPutField        Opcode = 72
	OpPutField8       Opcode = 73
	OpGetPrivateField Opcode = 74
	OpPutPrivateField Opcode = 75
	OpDefineField     Opcode = 76
	OpSetField        Opcode = 77
	OpGetArrayEl      Opcode = 78
	OpPutArrayEl      Opcode = 79
	OpGetSuper        Opcode = 80
	OpPutSuper        Opcode = 81
	OpDefineArrayEl   Opcode = 82
	OpSetSuper        Opcode = 83
	OpSetArrayEl      Opcode = 84
	OpGetLength       Opcode = 85

	// ===== Arithmetic (90-101) =====
	OpAdd     Opcode = 90
	OpSub     Opcode = 91
	OpMul     Opcode = 92
	OpDiv     Opcode = 93
	OpMod     Opcode = 94
	OpPow     Opcode = 95
	OpPlus    Opcode = 96
	OpNeg     Opcode = 97
	OpInc     Opcode = 98
	OpDec     Opcode = 99
	OpPostInc Opcode = 100
	OpPostDec Opcode = 101

	// ===== Comparison (110-119) =====
	OpLt         Opcode = 110
	OpLte        Opcode = 111
	OpGt         Opcode = 112
	OpGte        Opcode = 113
	OpEq         Opcode = 114
	OpNeq        Opcode = 115
	OpStrictEq   Opcode = 116
	OpStrictNeq  Opcode = 117
	OpInstanceof Opcode = 118
	OpIn         Opcode = 119

	// ===== Logical (130-133) =====
	OpLNot    Opcode = 130
	OpLAnd    Opcode = 131
	OpLOr     Opcode = 132
	OpNullish Opcode = 133

	// ===== Bitwise (140-146) =====
	OpNot Opcode = 140
	OpAnd Opcode = 141
	OpOr  Opcode = 142
	OpXor Opcode = 143
	OpShl Opcode = 144
	OpSar Opcode = 145
	OpShr Opcode = 146

	// ===== Control flow (160-170) =====
	OpIfFalse     Opcode = 160
	OpIfTrue      Opcode = 161
	OpGoto        Opcode = 162
	OpReturn      Opcode = 163
	OpReturnUndef Opcode = 164
	OpGosub       Opcode = 165
	OpRet         Opcode = 166
	OpCheckVar    Opcode = 167
	OpCheckThis   Opcode = 168
	OpBreak       Opcode = 169
	OpContinue    Opcode = 170

	// ===== Calls (180-188) =====
	OpCall           Opcode = 180
	OpTailCall       Opcode = 181
	OpCallMethod     Opcode = 182
	OpTailCallMethod Opcode = 183
	OpCallConstructor Opcode = 184
	OpEval           Opcode = 185
	OpApply          Opcode = 186
	OpApplyEval      Opcode = 187
	OpCallSpread     Opcode = 188

	// ===== Object/iteration operations (200-229) =====
	OpObject              Opcode = 200
	OpArray               Opcode = 201
	OpRegexp              Opcode = 202
	OpGetIterator         Opcode = 203
	OpGetAsyncIterator    Opcode = 204
	OpIteratorNext        Opcode = 205
	OpIteratorClose       Opcode = 206
	OpIteratorCheckObject Opcode = 207
	OpForInStart          Opcode = 208
	OpForInNext           Opcode = 209
	OpForOfStart          Opcode = 210
	OpForOfNext           Opcode = 211
	OpTypeOf              Opcode = 212
	OpDelete              Opcode = 213
	OpDeleteVar           Opcode = 214
	OpVoid                Opcode = 215
	OpSpreadArray         Opcode = 216
	OpSpreadObject        Opcode = 217
	OpCopyDataProperties  Opcode = 218
	OpDefinePrivateField  Opcode = 219
	OpDefineMethod        Opcode = 220
	OpDefineGetter        Opcode = 221
	OpDefineSetter        Opcode = 222
	OpDefineClassName     Opcode = 223
	OpArguments           Opcode = 224
	OpRestArgs            Opcode = 225
	OpDefineClass         Opcode = 226
	OpSetHomeObject       Opcode = 227
	OpSetName             Opcode = 228
	OpSetProto            Opcode = 229

	// ===== Closures (240-245) =====
	OpFClosure        Opcode = 240
	OpFClosureVarArgs Opcode = 241
	OpSetVarRefThis   Opcode = 242
	OpGetVarRefCheck  Opcode = 243
	OpPutVarRefCheck  Opcode = 244
	OpSetVarRefCheck  Opcode = 245

	// ===== Exception handling (248-255) =====
	OpClearCatchOffset Opcode = 248
	OpThrow            Opcode = 250
	OpThrowError       Opcode = 251
	OpCatch            Opcode = 252
	OpPushCatchOffset  Opcode = 253
	OpRethrow          Opcode = 254
	OpNop              Opcode = 255
)

// Format identifies an opcode's operand encoding (§6.2).
type Format int

const (
	FormatNone Format = iota
	FormatU8
	FormatI8
	FormatU16
	FormatI16
	FormatU32
	FormatI32
	FormatLabel
	FormatConst8
	FormatConst16
	FormatAtom8
	FormatAtom16
)

// OperandSize returns the number of operand bytes a format occupies.
func (f Format) OperandSize() int {
	switch f {
	case FormatNone:
		return 0
	case FormatU8, FormatI8, FormatConst8, FormatAtom8:
		return 1
	case FormatU16, FormatI16, FormatConst16, FormatAtom16:
		return 2
	case FormatU32, FormatI32, FormatLabel:
		return 4
	default:
		return 0
	}
}

var formatTable = map[Opcode]Format{
	OpDrop: FormatNone, OpDup: FormatNone, OpSwap: FormatNone, OpNip: FormatNone,
	OpInsert2: FormatNone, OpInsert3: FormatNone, OpPerm3: FormatNone,
	OpRot3l: FormatNone, OpRot3r: FormatNone, OpRot4l: FormatNone,

	OpUndefined: FormatNone, OpNull: FormatNone, OpPushFalse: FormatNone,
	OpPushTrue: FormatNone, OpPushI8: FormatI8, OpPushI16: FormatI16,
	OpPushI32: FormatI32, OpPushConst8: FormatConst8, OpPushConst16: FormatConst16,
	OpPushMinus1: FormatNone, OpPush0: FormatNone, OpPush1: FormatNone,
	OpPush2: FormatNone, OpPush3: FormatNone, OpPush4: FormatNone,
	OpPush5: FormatNone, OpPush6: FormatNone, OpPush7: FormatNone,
	OpPushEmptyString: FormatNone, OpPushThis: FormatNone, OpPushNaN: FormatNone,
	OpPushInfinity: FormatNone, OpPushNegInfinity: FormatNone,
	OpPushFunc8: FormatU8, OpPushFunc: FormatU16,
	OpPushAtomString8: FormatAtom8, OpPushAtomString16: FormatAtom16,

	OpGetLoc: FormatU8, OpPutLoc: FormatU8, OpSetLoc: FormatU8,
	OpGetArg: FormatU8, OpPutArg: FormatU8, OpSetArg: FormatU8,
	OpGetVarRef: FormatU8, OpPutVarRef: FormatU8, OpSetVarRef: FormatU8,
	OpGetLoc0: FormatNone, OpGetLoc1: FormatNone, OpGetLoc2: FormatNone, OpGetLoc3: FormatNone,
	OpPutLoc0: FormatNone, OpPutLoc1: FormatNone, OpPutLoc2: FormatNone, OpPutLoc3: FormatNone,
	OpSetLoc0: FormatNone, OpSetLoc1: FormatNone, OpSetLoc2: FormatNone, OpSetLoc3: FormatNone,
	OpGetGlobal8: FormatAtom8, OpGetGlobal16: FormatAtom16,
	OpPutGlobal8: FormatAtom8, OpPutGlobal16: FormatAtom16,
	OpSetGlobal8: FormatAtom8, OpSetGlobal16: FormatAtom16,

	OpGetField: FormatNone, OpGetField8: FormatAtom8,
	OpPutField: FormatNone, OpPutField8: FormatAtom8,
	OpGetPrivateField: FormatAtom8, OpPutPrivateField: FormatAtom8,
	OpDefineField: FormatAtom8, OpSetField: FormatNone,
	OpGetArrayEl: FormatNone, OpPutArrayEl: FormatNone,
	OpGetSuper: FormatAtom8, OpPutSuper: FormatAtom8,
	OpDefineArrayEl: FormatNone, OpSetSuper: FormatAtom8,
	OpSetArrayEl: FormatNone, OpGetLength: FormatNone,

	OpAdd: FormatNone, OpSub: FormatNone, OpMul: FormatNone, OpDiv: FormatNone,
	OpMod: FormatNone, OpPow: FormatNone, OpPlus: FormatNone, OpNeg: FormatNone,
	OpInc: FormatNone, OpDec: FormatNone, OpPostInc: FormatNone, OpPostDec: FormatNone,

	OpLt: FormatNone, OpLte: FormatNone, OpGt: FormatNone, OpGte: FormatNone,
	OpEq: FormatNone, OpNeq: FormatNone, OpStrictEq: FormatNone, OpStrictNeq: FormatNone,
	OpInstanceof: FormatNone, OpIn: FormatNone,

	OpLNot: FormatNone, OpLAnd: FormatNone, OpLOr: FormatNone, OpNullish: FormatNone,

	OpNot: FormatNone, OpAnd: FormatNone, OpOr: FormatNone, OpXor: FormatNone,
	OpShl: FormatNone, OpSar: FormatNone, OpShr: FormatNone,

	OpIfFalse: FormatLabel, OpIfTrue: FormatLabel, OpGoto: FormatLabel,
	OpReturn: FormatNone, OpReturnUndef: FormatNone,
	OpGosub: FormatLabel, OpRet: FormatNone,
	OpCheckVar: FormatNone, OpCheckThis: FormatNone,
	OpBreak: FormatLabel, OpContinue: FormatLabel,

	OpCall: FormatU16, OpTailCall: FormatU16,
	OpCallMethod: FormatU16, OpTailCallMethod: FormatU16,
	OpCallConstructor: FormatU16, OpEval: FormatU16,
	OpApply: FormatNone, OpApplyEval: FormatNone, OpCallSpread: FormatU16,

	OpObject: FormatNone, OpArray: FormatNone, OpRegexp: FormatAtom16,
	OpGetIterator: FormatNone, OpGetAsyncIterator: FormatNone,
	OpIteratorNext: FormatNone, OpIteratorClose: FormatNone, OpIteratorCheckObject: FormatNone,
	OpForInStart: FormatNone, OpForInNext: FormatLabel,
	OpForOfStart: FormatNone, OpForOfNext: FormatLabel,
	OpTypeOf: FormatNone, OpDelete: FormatNone, OpDeleteVar: FormatAtom16, OpVoid: FormatNone,
	OpSpreadArray: FormatNone, OpSpreadObject: FormatNone, OpCopyDataProperties: FormatNone,
	OpDefinePrivateField: FormatAtom8, OpDefineMethod: FormatAtom16,
	OpDefineGetter: FormatAtom16, OpDefineSetter: FormatAtom16,
	OpDefineClassName: FormatAtom16, OpArguments: FormatNone, OpRestArgs: FormatU8,
	OpDefineClass: FormatU16, OpSetHomeObject: FormatNone,
	OpSetName: FormatAtom16, OpSetProto: FormatNone,

	OpFClosure: FormatU16, OpFClosureVarArgs: FormatU16,
	OpSetVarRefThis: FormatU8, OpGetVarRefCheck: FormatU8,
	OpPutVarRefCheck: FormatU8, OpSetVarRefCheck: FormatU8,

	OpClearCatchOffset: FormatNone, OpThrow: FormatNone, OpThrowError: FormatU8,
	OpCatch: FormatNone, OpPushCatchOffset: FormatLabel, OpRethrow: FormatNone,
	OpNop: FormatNone,
}

// FormatOf returns op's operand format.
func FormatOf(op Opcode) Format {
	return formatTable[op]
}

var names = map[Opcode]string{
	OpDrop: "drop", OpDup: "dup", OpSwap: "swap", OpNip: "nip",
	OpInsert2: "insert2", OpInsert3: "insert3", OpPerm3: "perm3",
	OpRot3l: "rot3l", OpRot3r: "rot3r", OpRot4l: "rot4l",

	OpUndefined: "undefined", OpNull: "null", OpPushFalse: "push_false",
	OpPushTrue: "push_true", OpPushI8: "push_i8", OpPushI16: "push_i16",
	OpPushI32: "push_i32", OpPushConst8: "push_const8", OpPushConst16: "push_const16",
	OpPushMinus1: "push_m1", OpPush0: "push_0", OpPush1: "push_1",
	OpPush2: "push_2", OpPush3: "push_3", OpPush4: "push_4",
	OpPush5: "push_5", OpPush6: "push_6", OpPush7: "push_7",
	OpPushEmptyString: "push_empty_string", OpPushThis: "push_this",
	OpPushNaN: "push_nan", OpPushInfinity: "push_infinity",
	OpPushNegInfinity: "push_neg_infinity",
	OpPushFunc8: "push_func8", OpPushFunc: "push_func",
	OpPushAtomString8: "push_atom_string8", OpPushAtomString16: "push_atom_string16",

	OpGetLoc: "get_loc", OpPutLoc: "put_loc", OpSetLoc: "set_loc",
	OpGetArg: "get_arg", OpPutArg: "put_arg", OpSetArg: "set_arg",
	OpGetVarRef: "get_var_ref", OpPutVarRef: "put_var_ref", OpSetVarRef: "set_var_ref",
	OpGetLoc0: "get_loc0", OpGetLoc1: "get_loc1", OpGetLoc2: "get_loc2", OpGetLoc3: "get_loc3",
	OpPutLoc0: "put_loc0", OpPutLoc1: "put_loc1", OpPutLoc2: "put_loc2", OpPutLoc3: "put_loc3",
	OpSetLoc0: "set_loc0", OpSetLoc1: "set_loc1", OpSetLoc2: "set_loc2", OpSetLoc3: "set_loc3",
	OpGetGlobal8: "get_global8", OpGetGlobal16: "get_global16",
	OpPutGlobal8: "put_global8", OpPutGlobal16: "put_global16",
	OpSetGlobal8: "set_global8", OpSetGlobal16: "set_global16",

	OpGetField: "get_field", OpGetField8: "get_field8",
	OpPutField: "put_field", OpPutField8: "put_field8",
	OpGetPrivateField: "get_private_field", OpPutPrivateField: "put_private_field",
	OpDefineField: "define_field", OpSetField: "set_field",
	OpGetArrayEl: "get_array_el", OpPutArrayEl: "put_array_el",
	OpGetSuper: "get_super", OpPutSuper: "put_super",
	OpDefineArrayEl: "define_array_el", OpSetSuper: "set_super",
	OpSetArrayEl: "set_array_el", OpGetLength: "get_length",

	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div",
	OpMod: "mod", OpPow: "pow", OpPlus: "plus", OpNeg: "neg",
	OpInc: "inc", OpDec: "dec", OpPostInc: "post_inc", OpPostDec: "post_dec",

	OpLt: "lt", OpLte: "lte", OpGt: "gt", OpGte: "gte",
	OpEq: "eq", OpNeq: "neq", OpStrictEq: "strict_eq", OpStrictNeq: "strict_neq",
	OpInstanceof: "instanceof", OpIn: "in",

	OpLNot: "lnot", OpLAnd: "land", OpLOr: "lor", OpNullish: "nullish",

	OpNot: "not", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpShl: "shl", OpSar: "sar", OpShr: "shr",

	OpIfFalse: "if_false", OpIfTrue: "if_true", OpGoto: "goto",
	OpReturn: "return", OpReturnUndef: "return_undef",
	OpGosub: "gosub", OpRet: "ret",
	OpCheckVar: "check_var", OpCheckThis: "check_this",
	OpBreak: "break", OpContinue: "continue",

	OpCall: "call", OpTailCall: "tail_call",
	OpCallMethod: "call_method", OpTailCallMethod: "tail_call_method",
	OpCallConstructor: "call_constructor", OpEval: "eval",
	OpApply: "apply", OpApplyEval: "apply_eval", OpCallSpread: "call_spread",

	OpObject: "object", OpArray: "array", OpRegexp: "regexp",
	OpGetIterator: "get_iterator", OpGetAsyncIterator: "get_async_iterator",
	OpIteratorNext: "iterator_next", OpIteratorClose: "iterator_close",
	OpIteratorCheckObject: "iterator_check_object",
	OpForInStart: "for_in_start", OpForInNext: "for_in_next",
	OpForOfStart: "for_of_start", OpForOfNext: "for_of_next",
	OpTypeOf: "typeof", OpDelete: "delete", OpDeleteVar: "delete_var", OpVoid: "void",
	OpSpreadArray: "spread_array", OpSpreadObject: "spread_object",
	OpCopyDataProperties: "copy_data_properties",
	OpDefinePrivateField: "define_private_field", OpDefineMethod: "define_method",
	OpDefineGetter: "define_getter", OpDefineSetter: "define_setter",
	OpDefineClassName: "define_class_name", OpArguments: "arguments",
	OpRestArgs: "rest_args", OpDefineClass: "define_class",
	OpSetHomeObject: "set_home_object", OpSetName: "set_name", OpSetProto: "set_proto",

	OpFClosure: "fclosure", OpFClosureVarArgs: "fclosure_var_args",
	OpSetVarRefThis: "set_var_ref_this", OpGetVarRefCheck: "get_var_ref_check",
	OpPutVarRefCheck: "put_var_ref_check", OpSetVarRefCheck: "set_var_ref_check",

	OpClearCatchOffset: "clear_catch_offset", OpThrow: "throw",
	OpThrowError: "throw_error", OpCatch: "catch",
	OpPushCatchOffset: "push_catch_offset", OpRethrow: "rethrow", OpNop: "nop",
}

// Name returns op's disassembly mnemonic, or "unknown" for an
// unassigned byte value.
func Name(op Opcode) string {
	if n, ok := names[op]; ok {
		return n
	}
	return "unknown"
}

// Reserved reports whether op is present in the catalogue and format
// table but has no VM dispatch handler (§9): arguments-object
// construction, spread, class, and iterator/generator machinery.
func Reserved(op Opcode) bool {
	switch op {
	case OpRegexp, OpGetIterator, OpGetAsyncIterator, OpIteratorNext,
		OpIteratorClose, OpIteratorCheckObject, OpForInStart, OpForInNext,
		OpForOfStart, OpForOfNext, OpSpreadArray, OpSpreadObject,
		OpCopyDataProperties, OpDefinePrivateField, OpDefineMethod,
		OpDefineClassName, OpArguments,
		OpRestArgs, OpDefineClass, OpSetHomeObject, OpSetName, OpSetProto,
		OpTailCall, OpTailCallMethod, OpEval, OpApply,
		OpApplyEval, OpCallSpread, OpGosub, OpRet, OpGetSuper, OpPutSuper,
		OpSetSuper, OpGetPrivateField, OpPutPrivateField:
		return true
	}
	return false
}
