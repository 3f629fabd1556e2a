package k8s

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/animalet/sargantana-discovery/pkg/discovery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
)

const (
	securedKey        = "secured"
	namespaceMetadata = "k8s_namespace"
	portMetadataKey   = "port."
)

var defaultSecurePorts = []int{443, 8443}

// DiscoveryConfig is the `kubernetes.discovery` section.
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`
	// AllNamespaces searches every namespace the client can list.
	AllNamespaces bool `yaml:"all_namespaces"`
	// Namespaces restricts the search. Empty means the current namespace.
	Namespaces               []string          `yaml:"namespaces"`
	ServiceLabels            map[string]string `yaml:"service_labels"`
	PrimaryPortName          string            `yaml:"primary_port_name"`
	IncludeNotReadyAddresses bool              `yaml:"include_not_ready_addresses"`
	KnownSecurePorts         []int             `yaml:"known_secure_ports"`
}

func (d DiscoveryConfig) Validate() error {
	if d.AllNamespaces && len(d.Namespaces) > 0 {
		return errors.New("all_namespaces and namespaces are mutually exclusive")
	}
	for _, ns := range d.Namespaces {
		if strings.TrimSpace(ns) == "" {
			return errors.New("namespaces must not contain empty entries")
		}
	}
	for _, port := range d.KnownSecurePorts {
		if port <= 0 || port > 65535 {
			return errors.Errorf("known secure port %d is out of range", port)
		}
	}
	return nil
}

// EffectiveSecurePorts returns the configured secure ports or 443 and 8443.
func (d DiscoveryConfig) EffectiveSecurePorts() []int {
	if len(d.KnownSecurePorts) == 0 {
		return defaultSecurePorts
	}
	return d.KnownSecurePorts
}

// DiscoveryClient implements discovery.Client against the Kubernetes API.
type DiscoveryClient struct {
	client    kubernetes.Interface
	namespace string
	cfg       DiscoveryConfig
}

var _ discovery.Client = (*DiscoveryClient)(nil)

// NewDiscoveryClient searches namespace unless cfg names other namespaces or
// all of them.
func NewDiscoveryClient(client kubernetes.Interface, namespace string, cfg DiscoveryConfig) *DiscoveryClient {
	return &DiscoveryClient{client: client, namespace: namespace, cfg: cfg}
}

func (c *DiscoveryClient) Description() string {
	return "Kubernetes Discovery Client"
}

func (c *DiscoveryClient) GetServices(ctx context.Context) ([]string, error) {
	services, err := c.listServices(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, svc := range services {
		seen[svc.Name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *DiscoveryClient) GetInstances(ctx context.Context, serviceID string) ([]discovery.ServiceInstance, error) {
	services, err := c.findServices(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	instances := make([]discovery.ServiceInstance, 0)
	for i := range services {
		found, err := c.instancesOf(ctx, &services[i])
		if err != nil {
			return nil, err
		}
		instances = append(instances, found...)
	}
	log.Debug().Str("service_id", serviceID).Int("instances", len(instances)).Msg("Resolved Kubernetes service")
	return instances, nil
}

func (c *DiscoveryClient) namespaces() []string {
	switch {
	case c.cfg.AllNamespaces:
		return []string{metav1.NamespaceAll}
	case len(c.cfg.Namespaces) > 0:
		return c.cfg.Namespaces
	default:
		return []string{c.namespace}
	}
}

func (c *DiscoveryClient) listOptions() metav1.ListOptions {
	if len(c.cfg.ServiceLabels) == 0 {
		return metav1.ListOptions{}
	}
	return metav1.ListOptions{LabelSelector: labels.SelectorFromSet(c.cfg.ServiceLabels).String()}
}

func (c *DiscoveryClient) listServices(ctx context.Context) ([]corev1.Service, error) {
	var out []corev1.Service
	for _, ns := range c.namespaces() {
		list, err := c.client.CoreV1().Services(ns).List(ctx, c.listOptions())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list services in namespace %q", ns)
		}
		out = append(out, list.Items...)
	}
	return out, nil
}

// findServices returns the services named serviceID that match the label
// filter. Across all namespaces it lists and filters by name; otherwise it
// reads each namespace directly.
func (c *DiscoveryClient) findServices(ctx context.Context, serviceID string) ([]corev1.Service, error) {
	if c.cfg.AllNamespaces {
		all, err := c.listServices(ctx)
		if err != nil {
			return nil, err
		}
		var out []corev1.Service
		for _, svc := range all {
			if svc.Name == serviceID {
				out = append(out, svc)
			}
		}
		return out, nil
	}

	selector := labels.SelectorFromSet(c.cfg.ServiceLabels)
	var out []corev1.Service
	for _, ns := range c.namespaces() {
		svc, err := c.client.CoreV1().Services(ns).Get(ctx, serviceID, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get service %s/%s", ns, serviceID)
		}
		if !selector.Matches(labels.Set(svc.Labels)) {
			continue
		}
		out = append(out, *svc)
	}
	return out, nil
}

func (c *DiscoveryClient) instancesOf(ctx context.Context, svc *corev1.Service) ([]discovery.ServiceInstance, error) {
	slices, err := c.client.DiscoveryV1().EndpointSlices(svc.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.SelectorFromSet(labels.Set{discoveryv1.LabelServiceName: svc.Name}).String(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list endpoint slices of %s/%s", svc.Namespace, svc.Name)
	}

	var instances []discovery.ServiceInstance
	for _, slice := range slices.Items {
		port, ok := c.selectPort(slice.Ports)
		if !ok {
			log.Debug().Str("service", svc.Name).Str("slice", slice.Name).Msg("Skipping endpoint slice without ports")
			continue
		}
		secure := c.isSecure(svc, port)
		metadata := c.metadata(svc, slice.Ports)

		for _, endpoint := range slice.Endpoints {
			if !c.cfg.IncludeNotReadyAddresses && !isReady(endpoint) {
				continue
			}
			for _, address := range endpoint.Addresses {
				id := address
				if endpoint.TargetRef != nil && endpoint.TargetRef.UID != "" {
					id = string(endpoint.TargetRef.UID)
				}
				instance := discovery.NewServiceInstance(id, svc.Name, address, port, secure)
				instance.Namespace = svc.Namespace
				instance.Metadata = copyMetadata(metadata)
				instances = append(instances, instance)
			}
		}
	}
	return instances, nil
}

// selectPort picks the primary port, else the only port, else https, else
// http, else the first one.
func (c *DiscoveryClient) selectPort(ports []discoveryv1.EndpointPort) (int, bool) {
	var valid []discoveryv1.EndpointPort
	for _, p := range ports {
		if p.Port != nil {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return 0, false
	}
	if len(valid) == 1 {
		return int(*valid[0].Port), true
	}
	for _, name := range []string{c.cfg.PrimaryPortName, "https", "http"} {
		if name == "" {
			continue
		}
		for _, p := range valid {
			if portName(p) == name {
				return int(*p.Port), true
			}
		}
	}
	return int(*valid[0].Port), true
}

func (c *DiscoveryClient) isSecure(svc *corev1.Service, port int) bool {
	if strings.EqualFold(svc.Labels[securedKey], "true") || strings.EqualFold(svc.Annotations[securedKey], "true") {
		return true
	}
	for _, p := range c.cfg.EffectiveSecurePorts() {
		if p == port {
			return true
		}
	}
	return false
}

func (c *DiscoveryClient) metadata(svc *corev1.Service, ports []discoveryv1.EndpointPort) map[string]string {
	md := make(map[string]string, len(svc.Labels)+len(svc.Annotations)+len(ports)+1)
	for k, v := range svc.Labels {
		md[k] = v
	}
	for k, v := range svc.Annotations {
		md[k] = v
	}
	for _, p := range ports {
		if p.Port != nil && portName(p) != "" {
			md[portMetadataKey+portName(p)] = strconv.Itoa(int(*p.Port))
		}
	}
	md[namespaceMetadata] = svc.Namespace
	return md
}

func portName(p discoveryv1.EndpointPort) string {
	if p.Name == nil {
		return ""
	}
	return *p.Name
}

// isReady treats a missing condition as ready, as the API documents.
func isReady(endpoint discoveryv1.Endpoint) bool {
	return endpoint.Conditions.Ready == nil || *endpoint.Conditions.Ready
}

func copyMetadata(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
