package redis

import "strings"

const (
	defaultNamespace  = "fr"
	keySeparator      = ":"
	idempotencyPrefix = "idempotency"
	lockPrefix        = "lock"
)

// IdempotencyKey namespaces a stored response or processed-event mark.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.key(idempotencyPrefix, scope, id)
}

// LockKey namespaces a distributed lock.
func (c *Client) LockKey(name string) string {
	return c.key(lockPrefix, name)
}

// key joins the non-blank parts under the client namespace.
func (c *Client) key(parts ...string) string {
	ns := c.namespace
	if ns == "" {
		ns = defaultNamespace
	}
	var b strings.Builder
	b.WriteString(ns)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteString(keySeparator)
			b.WriteString(part)
		}
	}
	return b.String()
}
