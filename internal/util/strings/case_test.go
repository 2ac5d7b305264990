package strings

import "testing"

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BlogPost", "blog_post"},
		{"HTTPRequest", "http_request"},
		{"already_snake", "already_snake"},
		{"ID", "id"},
	}

	for _, tt := range tests {
		if got := ToSnakeCase(tt.in); got != tt.want {
			t.Errorf("ToSnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"blog-posts", "blog_posts"},
		{"Blog Posts", "blog_posts"},
		{"tester", "tester"},
		{"--a--b--", "a_b"},
		{"2024-archive", "_2024_archive"},
		{"café", "caf"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ToIdentifier(tt.in); got != tt.want {
			t.Errorf("ToIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
