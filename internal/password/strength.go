// Package password rates password strength for the signup form.
package password

import (
	"regexp"
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"
)

// Level describes one of the five strength scores
type Level struct {
	Score       int    `json:"score"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var levels = [5]Level{
	{0, "Very Weak", "Extremely risky, easily guessed."},
	{1, "Weak", "Still very vulnerable to cracking."},
	{2, "Fair", "Could be stronger, consider improvements."},
	{3, "Good", "Reasonably secure, but more is better."},
	{4, "Strong", "Excellent! Very hard to guess."},
}

// fallbackTips are shown when the score is below Good
var fallbackTips = []string{
	"Use a mix of uppercase and lowercase letters.",
	"Include numbers and special characters (e.g., !@#$%^&*).",
	"Aim for at least 12 characters, longer is better.",
	"Avoid personal information or easily guessable patterns.",
}

// MinLength is the length the checklist asks for
const MinLength = 12

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// Checklist is the rule-by-rule view of a password
type Checklist struct {
	Length  bool `json:"length"`
	Upper   bool `json:"upper"`
	Lower   bool `json:"lower"`
	Digit   bool `json:"digit"`
	Special bool `json:"special"`
}

// Passed counts satisfied rules
func (c Checklist) Passed() int {
	n := 0
	for _, ok := range []bool{c.Length, c.Upper, c.Lower, c.Digit, c.Special} {
		if ok {
			n++
		}
	}
	return n
}

// Result is the evaluation of one password
type Result struct {
	Level
	Empty     bool      `json:"empty"`
	CrackTime string    `json:"crackTime,omitempty"`
	Tips      []string  `json:"tips,omitempty"`
	Checklist Checklist `json:"checklist"`
}

// Evaluate scores pw. userInputs (name, email) count against the password
// when they appear in it.
func Evaluate(pw string, userInputs ...string) Result {
	if pw == "" {
		return Result{Level: levels[0], Empty: true}
	}

	match := zxcvbn.PasswordStrength(pw, userInputs)
	score := match.Score
	if score < 0 {
		score = 0
	}
	if score > 4 {
		score = 4
	}

	result := Result{
		Level:     levels[score],
		CrackTime: match.CrackTimeDisplay,
		Checklist: Check(pw),
	}
	if score < 3 {
		result.Tips = append([]string(nil), fallbackTips...)
	}
	return result
}

// Check runs the regex checklist
func Check(pw string) Checklist {
	return Checklist{
		Length:  utf8.RuneCountInString(pw) >= MinLength,
		Upper:   upperRe.MatchString(pw),
		Lower:   lowerRe.MatchString(pw),
		Digit:   digitRe.MatchString(pw),
		Special: specialRe.MatchString(pw),
	}
}

// Levels returns the five levels in score order
func Levels() []Level {
	return levels[:]
}
