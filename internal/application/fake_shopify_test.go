package application

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/niveshsaharan/centire-shopify/internal/domain"
)

var (
	aliasPattern = regexp.MustCompile(`([A-Z_0-9]+): (\w+)\(([^)]*)\)`)
	argPattern   = regexp.MustCompile(`(\w+): \$(\w+)`)
)

// fakeShopify keeps webhook, script tag and storefront token state and answers
// the queries and composite mutations the managers send
type fakeShopify struct {
	webhooks         []domain.RemoteWebhook
	scriptTags       []domain.RemoteScriptTag
	tokens           []storefrontTokenNode
	storefrontScopes []string
	userErrors       map[string]string
	failWith         error
	nextID           int
}

func newFakeShopify() *fakeShopify {
	return &fakeShopify{userErrors: make(map[string]string), nextID: 100}
}

func (f *fakeShopify) client() *stubShopClient {
	return &stubShopClient{graphql: f.handle}
}

func (f *fakeShopify) id(kind string) string {
	f.nextID++
	return fmt.Sprintf("gid://shopify/%s/%d", kind, f.nextID)
}

func (f *fakeShopify) handle(query string, vars map[string]any) (string, error) {
	if f.failWith != nil {
		return "", f.failWith
	}

	var response any
	switch {
	case strings.HasPrefix(query, "query webhookSubscriptions"):
		edges := make([]map[string]any, 0, len(f.webhooks))
		for _, w := range f.webhooks {
			edges = append(edges, map[string]any{"node": w})
		}
		response = map[string]any{"webhookSubscriptions": map[string]any{"edges": edges}}

	case strings.HasPrefix(query, "query scriptTags"):
		edges := make([]map[string]any, 0, len(f.scriptTags))
		for _, s := range f.scriptTags {
			edges = append(edges, map[string]any{"node": s})
		}
		response = map[string]any{"scriptTags": map[string]any{"edges": edges}}

	case strings.HasPrefix(query, "query storefrontAccessTokens"):
		edges := make([]map[string]any, 0, len(f.tokens))
		for _, t := range f.tokens {
			edges = append(edges, map[string]any{"node": t})
		}
		response = map[string]any{"shop": map[string]any{"storefrontAccessTokens": map[string]any{"edges": edges}}}

	case strings.HasPrefix(query, "mutation"):
		out := make(map[string]any)
		for _, m := range aliasPattern.FindAllStringSubmatch(query, -1) {
			alias, field := m[1], m[2]
			args := make(map[string]any)
			for _, a := range argPattern.FindAllStringSubmatch(m[3], -1) {
				args[a[1]] = vars[a[2]]
			}
			if message, ok := f.userErrors[alias]; ok {
				out[alias] = map[string]any{
					"userErrors": []map[string]any{{"field": []string{"input"}, "message": message}},
				}
				continue
			}
			out[alias] = f.mutate(field, args)
		}
		response = out

	default:
		return "", fmt.Errorf("unexpected query: %s", query)
	}

	data, err := json.Marshal(response)
	return string(data), err
}

func (f *fakeShopify) mutate(field string, args map[string]any) map[string]any {
	none := []any{}
	switch field {
	case "webhookSubscriptionCreate":
		input := args["webhookSubscription"].(map[string]any)
		hook := domain.RemoteWebhook{ID: f.id("WebhookSubscription"), CallbackURL: input["callbackUrl"].(string), Topic: args["topic"].(string)}
		f.webhooks = append(f.webhooks, hook)
		return map[string]any{"webhookSubscription": hook, "userErrors": none}

	case "webhookSubscriptionDelete":
		id := args["id"].(string)
		for i, w := range f.webhooks {
			if w.ID == id {
				f.webhooks = append(f.webhooks[:i], f.webhooks[i+1:]...)
				return map[string]any{"deletedWebhookSubscriptionId": id, "userErrors": none}
			}
		}
		return map[string]any{"deletedWebhookSubscriptionId": nil, "userErrors": none}

	case "scriptTagCreate":
		input := args["input"].(map[string]any)
		tag := domain.RemoteScriptTag{ID: f.id("ScriptTag"), Src: input["src"].(string), DisplayScope: input["displayScope"].(string)}
		f.scriptTags = append(f.scriptTags, tag)
		return map[string]any{"scriptTag": tag, "userErrors": none}

	case "scriptTagDelete":
		id := args["id"].(string)
		for i, s := range f.scriptTags {
			if s.ID == id {
				f.scriptTags = append(f.scriptTags[:i], f.scriptTags[i+1:]...)
				break
			}
		}
		return map[string]any{"deletedScriptTagId": id, "userErrors": none}

	case "storefrontAccessTokenCreate":
		input := args["input"].(map[string]any)
		node := storefrontTokenNode{ID: f.id("StorefrontAccessToken"), Title: input["title"].(string), AccessToken: "sf_" + fmt.Sprint(f.nextID)}
		for _, scope := range f.storefrontScopes {
			node.AccessScopes = append(node.AccessScopes, struct {
				Handle string `json:"handle"`
			}{Handle: scope})
		}
		f.tokens = append(f.tokens, node)
		return map[string]any{"storefrontAccessToken": node, "userErrors": none}

	case "storefrontAccessTokenDelete":
		id := args["input"].(map[string]any)["id"].(string)
		for i, t := range f.tokens {
			if t.ID == id {
				f.tokens = append(f.tokens[:i], f.tokens[i+1:]...)
				break
			}
		}
		return map[string]any{"deletedStorefrontAccessTokenId": id, "userErrors": none}
	}
	return map[string]any{"userErrors": []map[string]any{{"message": "unknown field " + field}}}
}
