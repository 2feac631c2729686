package richtext

import (
	"strings"
	"testing"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

func testImages() map[int64]*model.PostImage {
	return map[int64]*model.PostImage{
		1: {ID: 1, ImageURL: "/media/posts/1/a.jpg", Caption: "Eiffel"},
		2: {ID: 2, ImageURL: "https://res.cloudinary.com/demo/image/upload/v1/b.jpg"},
	}
}

func TestReplaceImageTokens_SkipsFencedCode(t *testing.T) {
	md := "before\n```python\n[[img:1]]\n```\nafter"
	out, used := ReplaceImageTokens(md, testImages())
	if !strings.Contains(out, "[[img:1]]") {
		t.Errorf("токен внутри fenced-блока заменён: %q", out)
	}
	if len(used) != 0 {
		t.Errorf("used = %v, ожидали пусто", used)
	}
}

func TestReplaceImageTokens_SkipsTildeFence(t *testing.T) {
	md := "~~~\n[[img:1]]\n~~~\n[[img:1]]"
	out, used := ReplaceImageTokens(md, testImages())
	if !strings.HasPrefix(out, "~~~\n[[img:1]]\n~~~\n") {
		t.Errorf("fenced-блок ~~~ изменён: %q", out)
	}
	if !used[1] || !strings.Contains(out, `<figure class="md-img">`) {
		t.Errorf("токен вне блока не заменён: %q", out)
	}
}

func TestReplaceImageTokens_SkipsInlineCode(t *testing.T) {
	md := "before `[[img:1]]` and ``x [[img:2]] x`` after [[img:1]]"
	out, used := ReplaceImageTokens(md, testImages())
	if !strings.Contains(out, "`[[img:1]]`") || !strings.Contains(out, "``x [[img:2]] x``") {
		t.Errorf("inline-код изменён: %q", out)
	}
	if !used[1] || used[2] {
		t.Errorf("used = %v, ожидали только 1", used)
	}
}

func TestReplaceImageTokens_UnknownIDVerbatim(t *testing.T) {
	out, used := ReplaceImageTokens("x [[img:99|w=10]] y", testImages())
	if out != "x [[img:99|w=10]] y" || len(used) != 0 {
		t.Errorf("неизвестный id: out=%q used=%v", out, used)
	}
}

func TestReplaceImageTokens_Options(t *testing.T) {
	out, _ := ReplaceImageTokens(`[[img:2|w=480|h=320|crop=fill|caption="Old <town>"|alt='alt text']]`, testImages())

	wantSrc := `src="https://res.cloudinary.com/demo/image/upload/q_auto,f_auto,w_480,h_320,c_fill/v1/b.jpg"`
	if !strings.Contains(out, wantSrc) {
		t.Errorf("нет трансформированного src в %q", out)
	}
	if !strings.Contains(out, `alt="alt text"`) {
		t.Errorf("нет alt в %q", out)
	}
	if !strings.Contains(out, `<figcaption class="hint md-img__cap">Old &lt;town&gt;</figcaption>`) {
		t.Errorf("подпись не экранирована: %q", out)
	}
}

func TestReplaceImageTokens_DefaultCaption(t *testing.T) {
	out, _ := ReplaceImageTokens("[[img:1]]", testImages())
	want := `<figure class="md-img"><img class="md-img__img" src="/media/posts/1/a.jpg" alt="Eiffel" loading="lazy" />` +
		`<figcaption class="hint md-img__cap">Eiffel</figcaption></figure>`
	if out != want {
		t.Errorf("out = %q\nожидали %q", out, want)
	}

	out, _ = ReplaceImageTokens("[[img:2]]", testImages())
	if strings.Contains(out, "figcaption") {
		t.Errorf("пустая подпись выведена: %q", out)
	}
}

func TestParseImageOptions(t *testing.T) {
	opts := ParseImageOptions(` W=100 | h=abc | crop=thumb | caption="a|b" `)
	if opts.Width != 100 {
		t.Errorf("Width = %d, ожидали 100", opts.Width)
	}
	if opts.Height != 0 {
		t.Errorf("Height = %d, ожидали 0 для нечисла", opts.Height)
	}
	if opts.Crop != "thumb" {
		t.Errorf("Crop = %q", opts.Crop)
	}
}

func TestTokenIDs(t *testing.T) {
	md := "[[img:3]] `[[img:4]]` [[img:5|w=1]] [[img:3]]\n```\n[[img:6]]\n```"
	got := TokenIDs(md)
	if len(got) != 2 || got[0] != 3 || got[1] != 5 {
		t.Errorf("TokenIDs() = %v, ожидали [3 5]", got)
	}
}

func TestCloudinaryURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		w, h int
		crop string
		want string
	}{
		{
			"без размеров -> c_limit",
			"https://res.cloudinary.com/x/image/upload/v1/a.jpg", 0, 0, "",
			"https://res.cloudinary.com/x/image/upload/q_auto,f_auto,c_limit/v1/a.jpg",
		},
		{
			"уже трансформирован",
			"https://res.cloudinary.com/x/image/upload/w_96,c_fill/v1/a.jpg", 480, 0, "",
			"https://res.cloudinary.com/x/image/upload/w_96,c_fill/v1/a.jpg",
		},
		{
			"не Cloudinary",
			"/media/a.jpg", 480, 0, "",
			"/media/a.jpg",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CloudinaryURL(tc.url, tc.w, tc.h, tc.crop); got != tc.want {
				t.Errorf("CloudinaryURL() = %q, ожидали %q", got, tc.want)
			}
		})
	}
}

func TestRenderPost(t *testing.T) {
	r := NewRenderer()
	images := []*model.PostImage{
		{ID: 1, ImageURL: "/media/a.jpg", Caption: "A"},
		{ID: 2, ImageURL: "/media/b.jpg"},
	}

	got := r.RenderPost("# Paris\n\n[[img:1]]\n\nline1\nline2", images)
	html := string(got.HTML)

	if !strings.Contains(html, "<h1") {
		t.Errorf("заголовок не отрендерен: %q", html)
	}
	if !strings.Contains(html, `<figure class="md-img">`) || !strings.Contains(html, `loading="lazy"`) {
		t.Errorf("figure потерян при санитизации: %q", html)
	}
	if !strings.Contains(html, "line1<br") {
		t.Errorf("жёсткий перенос не отрендерен: %q", html)
	}
	if len(got.Gallery) != 1 || got.Gallery[0].ID != 2 {
		t.Errorf("Gallery = %v, ожидали только изображение 2", got.Gallery)
	}
}

func TestMarkdown_Sanitizes(t *testing.T) {
	r := NewRenderer()
	html := string(r.Markdown("<script>alert(1)</script>\n\n[link](https://example.com)\n\n| a | b |\n|---|---|\n| 1 | 2 |"))

	if strings.Contains(html, "<script") {
		t.Errorf("script не удалён: %q", html)
	}
	if !strings.Contains(html, `nofollow`) || !strings.Contains(html, `target="_blank"`) {
		t.Errorf("у внешней ссылки нет rel/target: %q", html)
	}
	if !strings.Contains(html, "<table>") {
		t.Errorf("таблица GFM не отрендерена: %q", html)
	}
}

func TestHighlight(t *testing.T) {
	tests := []struct {
		text, query, want string
	}{
		{"Seoul <trip>", "", "Seoul &lt;trip&gt;"},
		{"Seoul trip", "seoul", "<mark>Seoul</mark> trip"},
		{"Busan & Seoul", "busan seoul", "<mark>Busan</mark> &amp; <mark>Seoul</mark>"},
		{"amp test", "amp", "<mark>amp</mark> test"},
		{"Tokyo tokyotower", "tokyo tokyotower", "<mark>Tokyo</mark> <mark>tokyotower</mark>"},
		{"", "x", ""},
	}
	for _, tc := range tests {
		if got := string(Highlight(tc.text, tc.query)); got != tc.want {
			t.Errorf("Highlight(%q, %q) = %q, ожидали %q", tc.text, tc.query, got, tc.want)
		}
	}
}
