package dispatcher

import (
	"testing"

	"github.com/oriys/nova/internal/shared"
)

func perms(level shared.TrustLevel) shared.Permissions {
	return shared.NewPermissions(level)
}

func TestSelectExplicitHintWins(t *testing.T) {
	d := New()
	req := Request{Language: shared.LanguagePython, Permissions: perms(shared.TrustHigh), Code: "print(1)", Hint: HintPacketFilter}
	if got := d.Select(req); got != shared.RuntimeTypePacketFilter {
		t.Fatalf("got %v, want packet-filter", got)
	}
}

func TestSelectExplicitHintWinsOverDynamicLanguage(t *testing.T) {
	d := New()
	req := Request{Language: shared.LanguagePython, Permissions: perms(shared.TrustLow), Code: "import torch", Hint: HintPortableBytecode}
	if got := d.Select(req); got != shared.RuntimeTypePortableBytecode {
		t.Fatalf("got %v, want portable-bytecode", got)
	}
}

func TestSelectLowTrustDynamicLanguageStillRoutesToDynamicBackend(t *testing.T) {
	// Low-trust Python must still reach the dynamic-language backend so its
	// SecurityManager and sandboxed sub-runtime can run; the bytecode
	// compiler rejects non-Wasm source outright and would never get here.
	d := New()
	req := Request{Language: shared.LanguagePython, Permissions: perms(shared.TrustLow), Code: "import numpy"}
	if got := d.Select(req); got != shared.RuntimeTypeDynamicLanguage {
		t.Fatalf("got %v, want dynamic-language", got)
	}
}

func TestSelectMediumTrustSimpleStillRoutesToDynamicBackend(t *testing.T) {
	d := New()
	req := Request{Language: shared.LanguagePython, Permissions: perms(shared.TrustMedium), Code: "x = 1\nif x:\n    print(x)"}
	if got := d.Select(req); got != shared.RuntimeTypeDynamicLanguage {
		t.Fatalf("got %v, want dynamic-language", got)
	}
}

func TestSelectHighTrustMachineLearningRoutesToDynamicBackend(t *testing.T) {
	d := New()
	req := Request{Language: shared.LanguagePython, Permissions: perms(shared.TrustHigh), Code: "import torch\nmodel = torch.nn.Linear(1,1)"}
	if got := d.Select(req); got != shared.RuntimeTypeDynamicLanguage {
		t.Fatalf("got %v, want dynamic-language", got)
	}
}

func TestSelectJavaScriptAndTypeScriptRouteToDynamicBackend(t *testing.T) {
	d := New()
	for _, lang := range []shared.Language{shared.LanguageJavaScript, shared.LanguageTypeScript} {
		req := Request{Language: lang, Permissions: perms(shared.TrustLow), Code: "console.log(1)"}
		if got := d.Select(req); got != shared.RuntimeTypeDynamicLanguage {
			t.Fatalf("got %v, want dynamic-language for %v", got, lang)
		}
	}
}

func TestSelectNonDynamicLanguageNeverUsesDynamicBackend(t *testing.T) {
	d := New()
	req := Request{Language: shared.LanguageWasm, Permissions: perms(shared.TrustHigh), Code: ""}
	if got := d.Select(req); got != shared.RuntimeTypePortableBytecode {
		t.Fatalf("got %v, want portable-bytecode", got)
	}
}

func TestHistoryRecordAndAverages(t *testing.T) {
	h := NewPerformanceHistory()
	dynAvg, byteAvg := h.Averages(0)
	if dynAvg != defaultDynamicAvgMs || byteAvg != defaultBytecodeAvgMs {
		t.Fatalf("expected default averages, got %v/%v", dynAvg, byteAvg)
	}

	h.Record(shared.RuntimeTypeDynamicLanguage, 0, 500, true)
	dynAvg, _ = h.Averages(0)
	want := (0.0 + 500.0) / 2.0
	if dynAvg != want {
		t.Fatalf("got %v, want %v", dynAvg, want)
	}

	if h.TotalRecords() != 1 {
		t.Fatalf("expected 1 record, got %d", h.TotalRecords())
	}
}

func TestHistoryIgnoresNonCompetingRuntime(t *testing.T) {
	h := NewPerformanceHistory()
	h.Record(shared.RuntimeTypePacketFilter, 0, 10, true)
	if h.TotalRecords() != 0 {
		t.Fatalf("expected packet-filter records to be ignored, got %d", h.TotalRecords())
	}
}
