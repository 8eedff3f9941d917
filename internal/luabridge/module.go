package luabridge

import (
	"github.com/dshills/plugconf/internal/diff"
	"github.com/dshills/plugconf/internal/merge"
	"github.com/dshills/plugconf/internal/schema"
	"github.com/dshills/plugconf/internal/validate"
	lua "github.com/yuin/gopher-lua"
)

// ModuleName is the name Lua code requires the module by.
const ModuleName = "plugconf"

// Preload makes require("plugconf") available in L.
//
// The module provides:
//
//	validate(config, schema) -> completed config | nil, message
//	diff(old, new)           -> list of change descriptions
//	merge(base, overlay)     -> merged copy
//	describe(schema)         -> schema description
func Preload(L *lua.LState, opts ...validate.Option) {
	v := validate.New(opts...)
	L.PreloadModule(ModuleName, func(L *lua.LState) int {
		mod := L.NewTable()
		L.SetField(mod, "validate", L.NewFunction(func(L *lua.LState) int {
			return luaValidate(L, v)
		}))
		L.SetField(mod, "diff", L.NewFunction(luaDiff))
		L.SetField(mod, "merge", L.NewFunction(luaMerge))
		L.SetField(mod, "describe", L.NewFunction(luaDescribe))
		L.Push(mod)
		return 1
	})
}

func checkDefinition(L *lua.LState, n int) schema.Definition {
	raw, err := FromLua(L.CheckAny(n))
	if err != nil {
		L.ArgError(n, err.Error())
		return nil
	}
	def, err := schema.Decode(raw)
	if err != nil {
		L.ArgError(n, err.Error())
		return nil
	}
	return def
}

// validate(config, schema) -> config | nil, message
func luaValidate(L *lua.LState, v *validate.Validator) int {
	subject, err := FromLua(L.CheckAny(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	def := checkDefinition(L, 2)

	if err := v.Validate(subject, def, nil); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(ToLua(L, subject))
	return 1
}

// diff(old, new) -> {"...", ...}
func luaDiff(L *lua.LState) int {
	from, err := FromLua(L.CheckAny(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	to, err := FromLua(L.CheckAny(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}

	out := L.NewTable()
	diff.Diff(from, to, func(r diff.Record) {
		out.Append(lua.LString(r.String()))
	})
	L.Push(out)
	return 1
}

// merge(base, overlay) -> table
func luaMerge(L *lua.LState) int {
	base, err := FromLua(L.CheckAny(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	overlay, err := FromLua(L.CheckAny(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	merge.Merge(base, overlay)
	L.Push(ToLua(L, base))
	return 1
}

// describe(schema) -> string
func luaDescribe(L *lua.LState) int {
	def := checkDefinition(L, 1)
	L.Push(lua.LString(def.String()))
	return 1
}
