package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/mediaoffload/internal/auth"
)

// token prints a hook bearer token signed with the configured secret.
//
//	--subject string   integration name
//	--ttl duration     validity
func (a *App) token(ctx context.Context, args []string) (int, error) {
	fs := flagSet("token")
	subject := fs.String("subject", "cms", "integration name")
	ttl := fs.Duration("ttl", a.config.TokenTTL, "token validity")
	if err := parse(fs, args); err != nil {
		return 0, err
	}

	tok, err := auth.GenerateToken(*subject, []byte(a.config.HookSecret), *ttl)
	if err != nil {
		return 0, err
	}
	fmt.Fprintln(a.out, tok)
	return 0, nil
}
