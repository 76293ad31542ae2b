package domain

import "strings"

// UnauthenticatedScopePrefix marks scopes that belong to storefront access tokens
const UnauthenticatedScopePrefix = "unauthenticated_"

// Script tag scopes required before any script tag call is made
const (
	ScopeReadScriptTags  = "read_script_tags"
	ScopeWriteScriptTags = "write_script_tags"
)

// WebhookSpec is one desired webhook subscription from configuration
type WebhookSpec struct {
	Topic   string `json:"topic"`
	Address string `json:"address"`
}

// Key identifies the webhook by its callback URL
func (w WebhookSpec) Key() string { return w.Address }

// TopicEnum converts "orders/create" into the GraphQL enum ORDERS_CREATE
func (w WebhookSpec) TopicEnum() string {
	return TopicEnum(w.Topic)
}

// TopicEnum upper-cases a REST webhook topic and swaps slashes for underscores
func TopicEnum(topic string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(topic), "/", "_"))
}

// RemoteWebhook is a webhook subscription as it exists on the shop
type RemoteWebhook struct {
	ID          string `json:"id"`
	CallbackURL string `json:"callbackUrl"`
	Topic       string `json:"topic"`
}

func (w RemoteWebhook) Key() string { return w.CallbackURL }

// ScriptTagSpec is one desired script tag from configuration
type ScriptTagSpec struct {
	Src          string `json:"src"`
	Event        string `json:"event"`
	DisplayScope string `json:"display_scope"`
}

func (s ScriptTagSpec) Key() string { return s.Src }

// DisplayScopeEnum returns the GraphQL display scope, defaulting to ONLINE_STORE
func (s ScriptTagSpec) DisplayScopeEnum() string {
	if s.DisplayScope == "" {
		return "ONLINE_STORE"
	}
	return strings.ToUpper(s.DisplayScope)
}

// RemoteScriptTag is a script tag as it exists on the shop
type RemoteScriptTag struct {
	ID           string `json:"id"`
	Src          string `json:"src"`
	DisplayScope string `json:"displayScope"`
}

func (s RemoteScriptTag) Key() string { return s.Src }

// StorefrontToken is a storefront access token on the shop
type StorefrontToken struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	AccessToken string   `json:"accessToken"`
	Scopes      []string `json:"scopes"`
}

// UnauthenticatedScopes filters the scopes a storefront token must cover
func UnauthenticatedScopes(scopes []string) []string {
	var required []string
	for _, scope := range scopes {
		if strings.HasPrefix(scope, UnauthenticatedScopePrefix) {
			required = append(required, scope)
		}
	}
	return required
}

// TokensCoverScopes reports whether the union of the tokens' scopes includes every required scope
func TokensCoverScopes(tokens []StorefrontToken, required []string) bool {
	granted := make(map[string]struct{})
	for _, token := range tokens {
		for _, scope := range token.Scopes {
			granted[scope] = struct{}{}
		}
	}
	for _, scope := range required {
		if _, ok := granted[scope]; !ok {
			return false
		}
	}
	return true
}

// NormalizeTopic turns "orders-create" or " Orders/Create " into "orders/create"
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(topic), "-", "/"))
}
