package k8s

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	defaultNamespace          = "default"
	defaultServiceAccountPath = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"
	podNamespaceEnv           = "POD_NAMESPACE"
)

// serviceAccountPath is a variable so tests can point it at a temp file.
var serviceAccountPath = defaultServiceAccountPath

// CurrentNamespace resolves the namespace to search when none is configured:
// the explicit setting, the pod's service account, POD_NAMESPACE, the
// kubeconfig context, and finally "default".
func (c Config) CurrentNamespace() string {
	if ns := strings.TrimSpace(c.Namespace); ns != "" {
		return ns
	}
	if ns, err := namespaceFromFile(serviceAccountPath); err == nil {
		return ns
	}
	if ns := strings.TrimSpace(os.Getenv(podNamespaceEnv)); ns != "" {
		return ns
	}
	if ns, err := namespaceFromKubeconfig(c.clientConfig(), c.Context); err == nil {
		return ns
	}
	return defaultNamespace
}

func namespaceFromFile(path string) (string, error) {
	// #nosec G304 -- well known service account path
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to read namespace file")
	}
	ns := strings.TrimRight(string(data), "\r\n")
	if ns == "" {
		return "", errors.New("namespace file is empty")
	}
	return ns, nil
}

func namespaceFromKubeconfig(cc clientcmd.ClientConfig, contextName string) (string, error) {
	raw, err := cc.RawConfig()
	if err != nil {
		return "", errors.Wrap(err, "failed to load kubeconfig")
	}
	if contextName == "" {
		contextName = raw.CurrentContext
	}
	if contextName == "" {
		return "", errors.New("no current context set in kubeconfig")
	}
	kubeContext, ok := raw.Contexts[contextName]
	if !ok {
		return "", errors.Errorf("context %q not found in kubeconfig", contextName)
	}
	ns := strings.TrimSpace(kubeContext.Namespace)
	if ns == "" {
		return "", errors.Errorf("no namespace set in context %q", contextName)
	}
	return ns, nil
}
