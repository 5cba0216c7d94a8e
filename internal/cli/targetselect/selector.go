package targetselect

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/pt-nexus/webgate/internal/cli/userconfig"
	"github.com/pt-nexus/webgate/internal/config"
)

// Targets lists the proxy target profiles in display order
var Targets = []string{config.TargetDefault, config.TargetDev}

// ResolveTarget determines which proxy target to use based on the following priority:
// 1. The --target flag
// 2. The WEBGATE_PROXY_TARGET environment variable
// 3. The target saved in the user config by select-target
// 4. The default profile
func ResolveTarget(flag string) (string, error) {
	for _, candidate := range []string{flag, os.Getenv("WEBGATE_PROXY_TARGET")} {
		if candidate != "" {
			return Validate(candidate)
		}
	}

	saved, err := userconfig.GetProxyTarget()
	if err != nil {
		return "", fmt.Errorf("failed to load user config: %w", err)
	}
	if saved != "" {
		return Validate(saved)
	}

	return config.TargetDefault, nil
}

// Validate normalizes target and checks it names a known profile
func Validate(target string) (string, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	for _, t := range Targets {
		if t == target {
			return target, nil
		}
	}
	return "", fmt.Errorf("unknown proxy target %q (want %s)", target, strings.Join(Targets, " or "))
}

// PromptTargetSelection shows an interactive prompt for the user to select a target
func PromptTargetSelection(current string) (string, error) {
	type targetOption struct {
		Label  string
		Target string
	}

	options := make([]targetOption, len(Targets))
	cursor := 0
	for i, t := range Targets {
		label := t
		if t == current {
			label += " (current)"
			cursor = i
		}
		options[i] = targetOption{Label: label, Target: t}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a proxy target",
		Items:     options,
		Templates: templates,
		Size:      len(options),
		CursorPos: cursor,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("target selection cancelled: %w", err)
	}

	return options[index].Target, nil
}
