package models

import "testing"

func TestActorPermissions(t *testing.T) {
	reader := Actor{Subject: "r", Role: RoleReader}
	writer := Actor{Subject: "w", Role: RoleWriter}
	admin := Actor{Subject: "a", Role: RoleAdmin}
	nobody := Actor{Subject: "x", Role: "guest"}

	cases := []struct {
		name string
		got  bool
		want bool
	}{
		{"reader cannot write", reader.CanWrite(), false},
		{"writer can write", writer.CanWrite(), true},
		{"unknown role cannot write", nobody.CanWrite(), false},
		{"writer owns own story", writer.Owns("w"), true},
		{"writer does not own others", writer.Owns("a"), false},
		{"writer owns authorless story", writer.Owns(""), true},
		{"reader owns nothing", reader.Owns(""), false},
		{"admin owns everything", admin.Owns("w"), true},
		{"unknown role invalid", Role("guest").AtLeast(RoleReader), false},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}
