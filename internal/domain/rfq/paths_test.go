package rfq

import "testing"

func TestJoinWorkdirPath(t *testing.T) {
	testCases := []struct {
		name string
		root string
		rel  string
		want string
	}{
		{name: "windows root forward slash item", root: `C:\Vault\Projects\`, rel: "parts/bracket.sldprt", want: `C:\Vault\Projects\parts\bracket.sldprt`},
		{name: "windows root mixed item", root: `D:/PDM\Vault`, rel: `/sub\dir/a.slddrw`, want: `D:\PDM\Vault\sub\dir\a.slddrw`},
		{name: "unc root", root: `\\server\share`, rel: "a/b.sldasm", want: `\\server\share\a\b.sldasm`},
		{name: "posix root backslash item", root: "/srv/vault/", rel: `parts\sub\bracket.sldprt`, want: "/srv/vault/parts/sub/bracket.sldprt"},
		{name: "drive root with forward slashes", root: "C:/Vault/Projects", rel: `parts\bracket.sldprt`, want: "C:/Vault/Projects/parts/bracket.sldprt"},
		{name: "bare drive root", root: "C:", rel: "parts/a.sldprt", want: `C:\parts\a.sldprt`},
		{name: "relative windows root", root: `vault\parts`, rel: "a/b.slddrw", want: `vault\parts\a\b.slddrw`},
		{name: "relative posix root", root: "vault", rel: "./x/y.sldprt", want: "vault/x/y.sldprt"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := JoinWorkdirPath(tc.root, tc.rel); got != tc.want {
				t.Fatalf("JoinWorkdirPath(%q, %q) = %q, want %q", tc.root, tc.rel, got, tc.want)
			}
		})
	}
}
