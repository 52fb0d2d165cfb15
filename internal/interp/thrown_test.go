package interp

import "testing"

func TestToDotted(t *testing.T) {
	if got := toDotted("java/lang/NullPointerException"); got != "java.lang.NullPointerException" {
		t.Errorf("toDotted: got %q, want %q", got, "java.lang.NullPointerException")
	}
}

func TestSourceFile(t *testing.T) {
	tests := []struct{ dotted, want string }{
		{"java.lang.NullPointerException", "NullPointerException.java"},
		{"com.example.Outer$Inner", "Outer.java"},
		{"Hello", "Hello.java"},
	}
	for _, tt := range tests {
		if got := sourceFile(tt.dotted); got != tt.want {
			t.Errorf("sourceFile(%q): got %q, want %q", tt.dotted, got, tt.want)
		}
	}
}

func TestPrintStackTraceWithMessage(t *testing.T) {
	thrown := &Thrown{Trace: []TraceElement{
		{ClassName: "Hello", MethodName: "main", PC: 4},
		{ClassName: "java.lang.System", MethodName: "arraycopy", Native: true},
	}}
	got := thrown.PrintStackTrace("java.lang.NullPointerException", "boom")
	want := "java.lang.NullPointerException: boom\n" +
		"\tat Hello.main(Hello.java:4)\n" +
		"\tat java.lang.System.arraycopy(Native Method)\n"
	if got != want {
		t.Errorf("PrintStackTrace:\ngot  %q\nwant %q", got, want)
	}
}

func TestPrintStackTraceWithoutMessage(t *testing.T) {
	thrown := &Thrown{Trace: nil}
	got := thrown.PrintStackTrace("java.lang.Error", "")
	if got != "java.lang.Error\n" {
		t.Errorf("PrintStackTrace with no message: got %q", got)
	}
}
