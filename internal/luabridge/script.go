package luabridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/plugconf/internal/validate"
	"github.com/dshills/plugconf/internal/value"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// DefaultTimeout bounds the run time of a script.
const DefaultTimeout = 5 * time.Second

// ScriptError reports a script that failed to compile or run.
type ScriptError struct {
	Name    string
	Line    int
	Message string
	Err     error
}

func (e *ScriptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("lua script %s at line %d: %s", e.Name, e.Line, e.Message)
	}
	return fmt.Sprintf("lua script %s: %s", e.Name, e.Message)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// ScriptOption configures Eval.
type ScriptOption func(*script)

// WithTimeout bounds the script's run time. Zero disables the limit.
func WithTimeout(d time.Duration) ScriptOption {
	return func(s *script) {
		s.timeout = d
	}
}

// WithValidation passes options to the preloaded module's validator.
func WithValidation(opts ...validate.Option) ScriptOption {
	return func(s *script) {
		s.validate = opts
	}
}

type script struct {
	timeout  time.Duration
	validate []validate.Option
}

// libraries opened in a sandboxed state. io, os and debug are left out.
var libraries = []struct {
	name string
	open lua.LGFunction
}{
	{lua.LoadLibName, lua.OpenPackage},
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// requirable lists the modules a script may require.
var requirable = map[string]bool{
	lua.TabLibName:    true,
	lua.StringLibName: true,
	lua.MathLibName:   true,
	ModuleName:        true,
}

// Eval runs src as a sandboxed Lua chunk and converts the value it returns.
// The chunk can only reach the string, table and math libraries and the
// plugconf module. A chunk that returns nothing yields Null.
func Eval(ctx context.Context, name string, src []byte, opts ...ScriptOption) (*value.Value, error) {
	s := &script{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	for _, lib := range libraries {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	sandbox(L)
	Preload(L, s.validate...)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	L.SetContext(ctx)

	fn, err := L.Load(bytes.NewReader(src), name)
	if err != nil {
		return nil, compileError(name, err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		if ctx.Err() != nil {
			return nil, &ScriptError{Name: name, Message: ctx.Err().Error(), Err: ctx.Err()}
		}
		return nil, &ScriptError{Name: name, Message: runtimeMessage(err), Err: err}
	}

	ret := L.Get(-1)
	L.Pop(1)
	v, err := FromLua(ret)
	if err != nil {
		return nil, &ScriptError{Name: name, Message: "result: " + err.Error(), Err: err}
	}
	return v, nil
}

// sandbox removes the ways a chunk could load code from outside.
func sandbox(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		L.SetField(pkg, "path", lua.LString(""))
		L.SetField(pkg, "cpath", lua.LString(""))
	}

	require := L.GetGlobal("require")
	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		mod := L.CheckString(1)
		if !requirable[mod] {
			L.RaiseError("module %q is not available", mod)
			return 0
		}
		L.Push(require)
		L.Push(lua.LString(mod))
		L.Call(1, 1)
		return 1
	}))
}

func compileError(name string, err error) *ScriptError {
	se := &ScriptError{Name: name, Message: err.Error(), Err: err}
	var api *lua.ApiError
	if !errors.As(err, &api) || api.Cause == nil {
		return se
	}
	var perr *parse.Error
	if errors.As(api.Cause, &perr) {
		se.Line = perr.Pos.Line
		se.Message = perr.Message
		if perr.Token != "" {
			se.Message += " near '" + perr.Token + "'"
		}
	}
	return se
}

// runtimeMessage drops the stack trace gopher-lua appends to errors.
func runtimeMessage(err error) string {
	var api *lua.ApiError
	if errors.As(err, &api) && api.Object != nil {
		return api.Object.String()
	}
	msg, _, _ := strings.Cut(err.Error(), "\nstack traceback:")
	return msg
}
