package silk

import "testing"

func TestConvertANSIPlainText(t *testing.T) {
	spans := ConvertANSI("hello world")
	if len(spans) != 1 || spans[0].Text != "hello world" {
		t.Fatalf("spans = %+v", spans)
	}
}

func TestConvertANSIBold(t *testing.T) {
	spans := ConvertANSI("\x1b[1mbold\x1b[0m plain")
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d: %+v", len(spans), spans)
	}
	if spans[0].Text != "bold" || len(spans[0].Classes) != 1 || spans[0].Classes[0] != "bold" {
		t.Fatalf("first span = %+v", spans[0])
	}
	if spans[1].Text != " plain" || len(spans[1].Classes) != 0 {
		t.Fatalf("second span = %+v", spans[1])
	}
}

func TestConvertANSIRedForeground(t *testing.T) {
	spans := ConvertANSI("\x1b[31mred\x1b[0m")
	if len(spans) != 1 {
		t.Fatalf("spans = %+v", spans)
	}
	if spans[0].Styles["color"] != "#cc0000" {
		t.Fatalf("styles = %+v", spans[0].Styles)
	}
}

func TestConvertANSIBackground(t *testing.T) {
	spans := ConvertANSI("\x1b[42mgreenbg\x1b[0m")
	if spans[0].Styles["background-color"] != "#00cc00" {
		t.Fatalf("styles = %+v", spans[0].Styles)
	}
}

func TestConvertANSICombined(t *testing.T) {
	spans := ConvertANSI("\x1b[1;31mbold red\x1b[0m")
	if len(spans) != 1 {
		t.Fatalf("spans = %+v", spans)
	}
	if spans[0].Styles["color"] != "#cc0000" {
		t.Fatalf("color = %q", spans[0].Styles["color"])
	}
	if len(spans[0].Classes) != 1 || spans[0].Classes[0] != "bold" {
		t.Fatalf("classes = %+v", spans[0].Classes)
	}
}

func TestStripSGRReconstructsText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain text", "plain text"},
		{"\x1b[1mbold\x1b[0m", "bold"},
		{"\x1b[31mred\x1b[32mgreen\x1b[0mreset", "redgreenreset"},
	}
	for _, c := range cases {
		if got := StripSGR(c.in); got != c.want {
			t.Fatalf("StripSGR(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
