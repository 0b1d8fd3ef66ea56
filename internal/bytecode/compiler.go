package bytecode

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"

	"github.com/oriys/nova/internal/shared"
	"github.com/oriys/nova/internal/xerr"
)

// minimalWasm is a single-page module exporting a no-arg "_start" that
// returns 42, used as the stand-in compilation target for any source
// language this backend does not itself compile (Rust/C/C++/Go source
// would need a real toolchain invocation, which this backend does not
// shell out to). This mirrors next-rc's WasmCompiler, which returns a
// fixed placeholder WAT in the same situation.
//
// Encoded by hand as a WASM binary module rather than shelled out to a
// wat2wasm binary, since this backend never spawns an external toolchain.
var minimalWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic "\0asm"
	0x01, 0x00, 0x00, 0x00, // version 1
	// type section: () -> (i32)
	0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f,
	// function section: function 0 uses type 0
	0x03, 0x02, 0x01, 0x00,
	// export section: export function 0 as "_start"
	0x07, 0x0a, 0x01, 0x06, 0x5f, 0x73, 0x74, 0x61, 0x72, 0x74, 0x00, 0x00,
	// code section: function body `i32.const 42; end`
	0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x2a, 0x0b,
}

// Compiler turns source bytes into WASM bytes ready for the module cache.
// Actual Wasm-language input passes through unchanged; every other
// language is stubbed, matching next-rc's compiler.rs.
type Compiler struct {
	runtime wazero.Runtime
}

func NewCompiler(runtime wazero.Runtime) *Compiler {
	return &Compiler{runtime: runtime}
}

func (c *Compiler) Compile(ctx context.Context, code []byte, lang shared.Language) ([]byte, error) {
	switch lang {
	case shared.LanguageWasm:
		return code, nil
	case shared.LanguageRust, shared.LanguageC, shared.LanguageCpp, shared.LanguageGo:
		// Toolchain invocation is stubbed; see DESIGN.md.
		return minimalWasm, nil
	default:
		return nil, fmt.Errorf("%w: %s not supported by portable-bytecode backend", xerr.ErrInvalidLanguage, lang)
	}
}
