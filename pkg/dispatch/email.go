package dispatch

import "fmt"

// Tags are provider tags. A struct{}{} value marks a presence-only tag.
type Tags map[string]any

// Email is a fully prepared message ready for a Sender.
type Email struct {
	Headers map[string]string
	Tags    Tags
	Subject string
	HTML    string
	Text    string
	From    string // overrides the provider default when set
	ReplyTo string
	To      []string
}

// Address formats a name and email as "Name <email>", or just the email
// when name is empty.
func Address(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
