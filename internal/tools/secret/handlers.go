package secret

import (
	"context"
	"encoding/base64"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
	"github.com/giantswarm/mcp-k8s-guard/internal/manifest"
	"github.com/giantswarm/mcp-k8s-guard/internal/server"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools"
	"github.com/giantswarm/mcp-k8s-guard/internal/tools/output"
)

const kindSecret = "Secret"

// MessageNotCreated is the failure returned when a secret is absent and
// creation was not allowed.
const MessageNotCreated = "Secret does not exist and createIfMissing=false"

// Payload is the secret content supplied to secrets.set.
type Payload struct {
	// Type defaults to Opaque.
	Type string
	// Data maps keys to values, plain or base64-encoded.
	Data map[string]string
}

// decode returns the raw bytes of every value.
func (p Payload) decode(base64Encoded bool) (map[string][]byte, error) {
	out := make(map[string][]byte, len(p.Data))
	for k, v := range p.Data {
		if !base64Encoded {
			out[k] = []byte(v)
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, manifest.NewValidationError("data."+k, "value for key %q is not valid base64", k)
		}
		out[k] = raw
	}
	return out, nil
}

// keys returns the data keys in sorted order.
func (p Payload) keys() []string {
	keys := make([]string, 0, len(p.Data))
	for k := range p.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetResult is the body of a secrets.set response. Exactly one of Created
// and Updated is set.
type SetResult struct {
	Created bool     `json:"created,omitempty"`
	Updated bool     `json:"updated,omitempty"`
	Name    string   `json:"name"`
	Keys    []string `json:"keys"`
	DryRun  bool     `json:"dryRun"`
}

func namespaceAndName(args map[string]interface{}, sc *server.ServerContext) (string, string, error) {
	namespace, err := tools.OptionalString(args, "namespace")
	if err != nil {
		return "", "", err
	}
	if namespace == "" {
		namespace = sc.GuardEngine().DefaultNamespace()
	}
	name, err := tools.RequiredString(args, "name")
	if err != nil {
		return "", "", err
	}
	return namespace, name, nil
}

// handleGet handles secrets.get.
func handleGet(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolGet, tools.DefaultBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	args := request.GetArguments()
	namespace, name, err := namespaceAndName(args, sc)
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	keys, err := tools.StringSlice(args, "keys")
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	showValues, err := tools.OptionalBool(args, "showValues", false)
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	var secret *corev1.Secret
	err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationGet, kindSecret, namespace, func(ctx context.Context) error {
		var err error
		secret, err = sc.K8sClient().GetSecret(ctx, namespace, name)
		return err
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	disclose := output.Disclose(showValues, sc.GuardEngine().ReadOnly())
	return tools.JSONResult(output.ViewSecretData(string(secret.Type), secret.Data, keys, disclose))
}

// handleSet handles secrets.set. An existing secret has its type and data
// replaced; labels and annotations are kept.
func handleSet(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if err := tools.EnforceRateLimit(ctx, sc, ToolSet, tools.DefaultBudget); err != nil {
		return tools.ErrorResult(err), nil
	}

	args := request.GetArguments()
	namespace, name, err := namespaceAndName(args, sc)
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	dryRunArg, err := tools.OptionalBoolPtr(args, "dryRun")
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	err = tools.EnforceGuard(ctx, sc, guard.OperationContext{
		Operation: ToolSet,
		Namespace: namespace,
		Kind:      kindSecret,
		DryRun:    dryRunArg,
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	payload, err := payloadFromArgs(args)
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	base64Encoded, err := tools.OptionalBool(args, "base64Encoded", false)
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	createIfMissing, err := tools.OptionalBool(args, "createIfMissing", true)
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	data, err := payload.decode(base64Encoded)
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	dryRun := dryRunArg == nil || *dryRunArg

	var existing *corev1.Secret
	err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationGet, kindSecret, namespace, func(ctx context.Context) error {
		var err error
		existing, err = sc.K8sClient().GetSecret(ctx, namespace, name)
		if apierrors.IsNotFound(err) {
			existing = nil
			return nil
		}
		return err
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}

	result := SetResult{Name: name, Keys: payload.keys(), DryRun: dryRun}

	if existing == nil {
		if !createIfMissing {
			return tools.ErrorResult(&manifest.ValidationError{Reason: MessageNotCreated}), nil
		}

		secret := &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
			Type:       corev1.SecretType(payload.Type),
			Data:       data,
		}
		err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationCreate, kindSecret, namespace, func(ctx context.Context) error {
			created, err := sc.K8sClient().CreateSecret(ctx, secret, dryRun)
			if err == nil && created.Name != "" {
				result.Name = created.Name
			}
			return err
		})
		if err != nil {
			return tools.ErrorResult(err), nil
		}
		result.Created = true
		return tools.JSONResult(result)
	}

	secret := existing.DeepCopy()
	secret.Type = corev1.SecretType(payload.Type)
	secret.Data = data
	secret.StringData = nil
	err = tools.TrackK8sOperation(ctx, sc, instrumentation.OperationUpdate, kindSecret, namespace, func(ctx context.Context) error {
		_, err := sc.K8sClient().UpdateSecret(ctx, secret, dryRun)
		return err
	})
	if err != nil {
		return tools.ErrorResult(err), nil
	}
	result.Updated = true
	return tools.JSONResult(result)
}

func payloadFromArgs(args map[string]interface{}) (Payload, error) {
	data, err := tools.StringMap(args, "data")
	if err != nil {
		return Payload{}, err
	}
	if len(data) == 0 {
		return Payload{}, manifest.NewValidationError("data", "data must contain at least one key")
	}
	secretType, err := tools.OptionalString(args, "type")
	if err != nil {
		return Payload{}, err
	}
	if secretType == "" {
		secretType = string(corev1.SecretTypeOpaque)
	}
	return Payload{Type: secretType, Data: data}, nil
}
