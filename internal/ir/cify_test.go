package ir

import "testing"

func TestCify(t *testing.T) {
	cases := map[string]string{
		"x":          "tensor_x",
		"conv1.weight": "tensor_conv1_weight",
		"":           "tensor_",
		"a-b/c":      "tensor_a_b_c",
	}
	for in, want := range cases {
		if got := Cify(in); got != want {
			t.Errorf("Cify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNodeCify(t *testing.T) {
	if got := NodeCify("relu_1"); got != "node_relu_1" {
		t.Errorf("NodeCify = %q", got)
	}
}
