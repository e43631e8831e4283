package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDemangle(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		changed bool
	}{
		{"itanium function", "_ZN3foo3barEv", "foo::bar()", true},
		{"plain C symbol", "malloc", "malloc", false},
		{"empty", "", "", false},
		{"already demangled", "foo::bar()", "foo::bar()", false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, changed := Demangle(test.in)
			assert.Equal(t, test.want, got)
			assert.Equal(t, test.changed, changed)
		})
	}
}

func TestFixRust(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		changed bool
	}{
		{
			name:    "trait impl",
			in:      "_$LT$std..io..Stdout$u20$as$u20$std..io..Write$GT$::write::h0123456789abcdef",
			want:    "<std::io::Stdout as std::io::Write>::write::h0123456789abcdef",
			changed: true,
		},
		{
			name:    "path separators only",
			in:      "core..ptr..drop_in_place::h00000000deadbeef",
			want:    "core::ptr::drop_in_place::h00000000deadbeef",
			changed: true,
		},
		{
			name:    "reference and comma",
			in:      "alloc..vec..Vec$LT$$RF$str$C$u8$GT$::push::haaaaaaaaaaaaaaaa",
			want:    "alloc::vec::Vec<&str,u8>::push::haaaaaaaaaaaaaaaa",
			changed: true,
		},
		{
			name:    "no hash suffix",
			in:      "core..ptr..drop_in_place",
			want:    "core..ptr..drop_in_place",
			changed: false,
		},
		{
			name:    "clean rust symbol",
			in:      "core::ptr::drop_in_place::h00000000deadbeef",
			want:    "core::ptr::drop_in_place::h00000000deadbeef",
			changed: false,
		},
		{
			name:    "unknown escape kept",
			in:      "a..b$zz$c::h0123456789abcdef",
			want:    "a::b$zz$c::h0123456789abcdef",
			changed: true,
		},
		{
			name:    "c function",
			in:      "memcpy",
			want:    "memcpy",
			changed: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, changed := FixRust(test.in)
			assert.Equal(t, test.want, got)
			assert.Equal(t, test.changed, changed)
		})
	}
}

func TestHasRustHash(t *testing.T) {
	assert.True(t, hasRustHash("x::h0123456789abcdef"))
	assert.False(t, hasRustHash("x::h0123456789abcdeF"))
	assert.False(t, hasRustHash("x::g0123456789abcdef"))
	assert.False(t, hasRustHash("h0123456789abcdef"))
}
