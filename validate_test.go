package learnhub_test

import (
	"testing"

	learnhub "github.com/chimerakang/learnhub-go"
)

func TestValidate_Messages(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want string
	}{
		{"missing email", learnhub.LoginRequest{Password: "secret1"}, "Email is required"},
		{"bad email", learnhub.LoginRequest{Email: "nope", Password: "secret1"}, "Email must be a valid email address"},
		{"short password", learnhub.LoginRequest{Email: "a@b.com", Password: "123"}, "Password must be at least 6 characters"},
		{"no uppercase", learnhub.RegisterRequest{
			FirstName: "A", LastName: "B", Email: "a@b.com", Password: "secret12", ConfirmPassword: "secret12",
		}, "Password must contain an uppercase letter"},
		{"mismatch", learnhub.RegisterRequest{
			FirstName: "A", LastName: "B", Email: "a@b.com", Password: "Secret12", ConfirmPassword: "Secret13",
		}, "ConfirmPassword must match Password"},
		{"same password", learnhub.ChangePasswordData{CurrentPassword: "secret12", NewPassword: "secret12"},
			"NewPassword must differ from CurrentPassword"},
	}
	for _, tc := range cases {
		err := learnhub.Validate(tc.v)
		if learnhub.KindOf(err) != learnhub.KindInvalid {
			t.Errorf("%s: KindOf() = %s, want invalid", tc.name, learnhub.KindOf(err))
			continue
		}
		if got := learnhub.MessageOf(err); got != tc.want {
			t.Errorf("%s: message = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestValidate_OK(t *testing.T) {
	ok := []any{
		learnhub.LoginRequest{Email: "a@b.com", Password: "secret1"},
		learnhub.RegisterRequest{FirstName: "A", LastName: "B", Email: "a@b.com", Password: "Secret12", ConfirmPassword: "Secret12"},
		learnhub.VerifyOTPRequest{Email: "a@b.com", Code: "123456"},
	}
	for _, v := range ok {
		if err := learnhub.Validate(v); err != nil {
			t.Errorf("Validate(%T) error: %v", v, err)
		}
	}
}
