package dom

import "testing"

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "paragraphs and inline",
			in:   `<p>Do <strong>not</strong> flood <a href="/x">here</a>.</p><p>Line<br>two <script>alert(1)</script></p><ul><li>a</li><li>b</li></ul>`,
			want: "Do **not** flood [here](/x).\n\nLine\\\ntwo\n\n- a\n- b",
		},
		{
			name: "escapes markdown and html",
			in:   `<p>a &lt;b&gt; and 2*3</p>`,
			want: `a \<b> and 2\*3`,
		},
		{
			name: "code and image",
			in:   `<p>Use <code>/ban</code> and <img src="/api/assets/x.png" alt="x"></p>`,
			want: "Use `/ban` and ![x](/api/assets/x.png)",
		},
		{
			name: "ordered list",
			in:   `<ol><li>one</li><li><em>two</em></li></ol>`,
			want: "1. one\n2. *two*",
		},
		{
			name: "bare text",
			in:   "\n  Hang out\n  on voice.  ",
			want: "Hang out on voice.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Markdown(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Markdown() = %q, want %q", got, tt.want)
			}
		})
	}
}
