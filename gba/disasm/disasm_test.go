package disasm

import "testing"

func TestClassifyARMBranch(t *testing.T) {
	// B  +0  (cond=AL, bits 27-25=101)
	line := DisassembleARM(0x08000000, 0xEA000000)
	if line.Length != 4 {
		t.Errorf("ARM instruction length = %d, want 4", line.Length)
	}
	if got := classifyARM(0xEA000000); got != "B{L}" {
		t.Errorf("classifyARM(branch) = %q, want B{L}", got)
	}
}

func TestClassifyARMSoftwareInterrupt(t *testing.T) {
	if got := classifyARM(0xEF000000); got != "SWI" {
		t.Errorf("classifyARM(swi) = %q, want SWI", got)
	}
}

func TestClassifyThumbUnconditionalBranch(t *testing.T) {
	line := DisassembleThumb(0x08000000, 0xE000)
	if line.Length != 2 {
		t.Errorf("THUMB instruction length = %d, want 2", line.Length)
	}
	if got := classifyThumb(0xE000); got != "UnconditionalBranch" {
		t.Errorf("classifyThumb(b) = %q, want UnconditionalBranch", got)
	}
}

func TestClassifyThumbSoftwareInterrupt(t *testing.T) {
	if got := classifyThumb(0xDF00); got != "SWI" {
		t.Errorf("classifyThumb(swi) = %q, want SWI", got)
	}
}
