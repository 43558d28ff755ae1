package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Help styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Ember).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(Ash).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Umber).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(Ember).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(Umber).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(Ash).
				Italic(true)

	helpEnvStyle = lipgloss.NewStyle().
			Foreground(Sepia)
)

// StyledHelpPrinter creates a custom help printer with Lipgloss styling.
// Flags tagged with a kong group are listed under their own heading, in the
// order the groups first appear; untagged flags come first.
func StyledHelpPrinter(options kong.HelpOptions) kong.HelpPrinter {
	return kong.HelpPrinter(func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		// Title and description
		sb.WriteString(helpTitleStyle.Render(appTitle))
		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render(appDescription))
		sb.WriteString("\n")

		// Usage
		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(fmt.Sprintf("%s <input> [flags]", ctx.Model.Name))
		sb.WriteString("\n")

		args := getArguments(ctx)
		if len(args) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Arguments:"))
			sb.WriteString("\n")
			for _, arg := range args {
				sb.WriteString("  ")
				sb.WriteString(helpArgStyle.Render(arg.name))
				if arg.help != "" {
					sb.WriteString("  ")
					sb.WriteString(arg.help)
				}
				sb.WriteString("\n")
			}
		}

		sections := getFlagSections(ctx)
		width := 0
		for _, section := range sections {
			for _, f := range section.flags {
				width = max(width, len(f.flags))
			}
		}

		for _, section := range sections {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render(section.title + ":"))
			sb.WriteString("\n")
			for _, f := range section.flags {
				writeFlag(&sb, f, width)
			}
		}

		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render("Only two of --duration, --width and --resolution are independent; given all three, --resolution is recomputed."))

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	})
}

// writeFlag renders one flag line, padding the flag names to width so help texts line up.
func writeFlag(sb *strings.Builder, f flag, width int) {
	sb.WriteString("  ")
	sb.WriteString(helpFlagStyle.Render(f.flags))
	if f.help != "" {
		sb.WriteString(strings.Repeat(" ", width-len(f.flags)+2))
		sb.WriteString(f.help)
	}
	if f.defaultVal != "" {
		sb.WriteString(" ")
		sb.WriteString(helpDefaultStyle.Render("(default: " + f.defaultVal + ")"))
	}
	if f.env != "" {
		sb.WriteString(" ")
		sb.WriteString(helpEnvStyle.Render("($" + f.env + ")"))
	}
	sb.WriteString("\n")
}

type argument struct {
	name string
	help string
}

type flag struct {
	flags      string
	help       string
	defaultVal string
	env        string
}

type flagSection struct {
	title string
	flags []flag
}

func getArguments(ctx *kong.Context) []argument {
	var args []argument

	for _, arg := range ctx.Model.Node.Positional {
		args = append(args, argument{name: arg.Summary(), help: arg.Help})
	}

	return args
}

// getFlagSections splits the model's visible flags by group.
func getFlagSections(ctx *kong.Context) []flagSection {
	general := flagSection{
		title: "Flags",
		flags: []flag{{flags: "-h, --help", help: "Show context-sensitive help."}},
	}
	var grouped []flagSection
	index := map[string]int{}

	for _, f := range ctx.Model.Node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}

		if f.Group == nil {
			general.flags = append(general.flags, describeFlag(f))
			continue
		}

		i, ok := index[f.Group.Key]
		if !ok {
			i = len(grouped)
			index[f.Group.Key] = i
			grouped = append(grouped, flagSection{title: f.Group.Title + " Flags"})
		}
		grouped[i].flags = append(grouped[i].flags, describeFlag(f))
	}

	return append([]flagSection{general}, grouped...)
}

func describeFlag(f *kong.Flag) flag {
	names := fmt.Sprintf("--%s", f.Name)
	if f.Short != 0 {
		names = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
	}
	if !f.IsBool() && f.PlaceHolder != "" {
		names += "=" + strings.ToUpper(f.PlaceHolder)
	}

	// Only show default if it's a meaningful value (not empty, not type placeholder)
	defaultVal := ""
	if f.HasDefault && !f.IsBool() {
		if val := f.Default; val != "" && val != "STRING" && val != "BOOL" {
			defaultVal = val
		}
	}

	env := ""
	if len(f.Envs) > 0 {
		env = f.Envs[0]
	}

	return flag{
		flags:      names,
		help:       f.Help,
		defaultVal: defaultVal,
		env:        env,
	}
}
