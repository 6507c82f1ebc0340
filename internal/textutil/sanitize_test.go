package textutil

import "testing"

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"realesrgan-ncnn-vulkan", "realesrgan-ncnn-vulkan"},
		{"Waifu2x Caffe", "waifu2x_caffe"},
		{"  ", "unknown"},
		{"***", "unknown"},
		{"_x_", "x"},
	}
	for _, tt := range tests {
		if got := SanitizeToken(tt.in); got != tt.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommandToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/opt/bin/Waifu2x.exe", "waifu2x"},
		{"realesrgan-ncnn-vulkan", "realesrgan-ncnn-vulkan"},
		{"", "unknown"},
		{"/", "unknown"},
	}
	for _, tt := range tests {
		if got := CommandToken(tt.in); got != tt.want {
			t.Errorf("CommandToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
