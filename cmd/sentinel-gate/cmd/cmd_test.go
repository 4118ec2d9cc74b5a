package cmd

import "testing"

func commandNames() []string {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	return names
}

func TestAllCommandsRegistered(t *testing.T) {
	want := []string{"evaluate", "validate-policy", "watch", "version"}
	for _, w := range want {
		found := false
		for _, n := range commandNames() {
			if n == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%q not registered with rootCmd, got %v", w, commandNames())
		}
	}
}

func TestEvaluateCmdRequestFlagDefault(t *testing.T) {
	flag := evaluateCmd.Flags().Lookup("request")
	if flag == nil {
		t.Fatal("request flag not registered on evaluateCmd")
	}
	if flag.DefValue != "admin" {
		t.Errorf("request default = %q, want %q", flag.DefValue, "admin")
	}
}

func TestValidatePolicyCmdAcceptsAtMostOneArg(t *testing.T) {
	if err := validatePolicyCmd.Args(validatePolicyCmd, nil); err != nil {
		t.Errorf("Args(nil) error = %v, want nil", err)
	}
	if err := validatePolicyCmd.Args(validatePolicyCmd, []string{"policy.yaml"}); err != nil {
		t.Errorf("Args(one file) error = %v, want nil", err)
	}
	if err := validatePolicyCmd.Args(validatePolicyCmd, []string{"a", "b"}); err == nil {
		t.Error("Args(two files) expected error, got nil")
	}
}

func TestRunValidatePolicyAcceptsBundledDemo(t *testing.T) {
	if err := runValidatePolicy(validatePolicyCmd, nil); err != nil {
		t.Errorf("runValidatePolicy(bundled demo) error = %v", err)
	}
}

func TestRunValidatePolicyRejectsMissingFile(t *testing.T) {
	if err := runValidatePolicy(validatePolicyCmd, []string{"/nonexistent/policy.yaml"}); err == nil {
		t.Error("expected error reading a nonexistent file")
	}
}

func TestCommandsHaveDescriptions(t *testing.T) {
	for _, cobraCmd := range []struct{ short, long string }{
		{evaluateCmd.Short, evaluateCmd.Long},
		{validatePolicyCmd.Short, validatePolicyCmd.Long},
		{watchCmd.Short, watchCmd.Long},
		{versionCmd.Short, versionCmd.Long},
	} {
		if cobraCmd.short == "" {
			t.Error("command missing Short description")
		}
		if cobraCmd.long == "" {
			t.Error("command missing Long description")
		}
	}
}
