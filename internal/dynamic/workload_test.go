package dynamic

import "testing"

func TestAnalyzeWorkloadMachineLearning(t *testing.T) {
	p := NewWorkloadProfiler()
	code := "import torch\nmodel = torch.nn.Linear(10, 1)\nprediction = model(x)"
	if got := p.AnalyzeWorkload(code); got != WorkloadMachineLearning {
		t.Fatalf("got %v, want machine-learning", got)
	}
}

func TestAnalyzeWorkloadCPUIntensive(t *testing.T) {
	p := NewWorkloadProfiler()
	code := "for i in range(1000000):\n    pass\nwhile True:\n    break"
	if got := p.AnalyzeWorkload(code); got != WorkloadCPUIntensive {
		t.Fatalf("got %v, want cpu-intensive", got)
	}
}

func TestAnalyzeWorkloadIOIntensive(t *testing.T) {
	p := NewWorkloadProfiler()
	code := "import requests\nresp = requests.get(url)\nf = open('out.json')\ndata = json.load(f)"
	if got := p.AnalyzeWorkload(code); got != WorkloadIOIntensive {
		t.Fatalf("got %v, want io-intensive", got)
	}
}

func TestAnalyzeWorkloadSimple(t *testing.T) {
	p := NewWorkloadProfiler()
	code := "x = 1\nif x:\n    print(x)\ndef f():\n    return x"
	if got := p.AnalyzeWorkload(code); got != WorkloadSimple {
		t.Fatalf("got %v, want simple", got)
	}
}

func TestAnalyzeWorkloadUnknownOnEmpty(t *testing.T) {
	p := NewWorkloadProfiler()
	if got := p.AnalyzeWorkload(""); got != WorkloadUnknown {
		t.Fatalf("got %v, want unknown", got)
	}
}
