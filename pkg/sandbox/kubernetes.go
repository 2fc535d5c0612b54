package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"

	"github.com/codeready-toolchain/repairagent/pkg/config"
	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
)

// kubernetesSandbox runs a session inside a dedicated Job whose Pod is
// kept alive, execed into via the SPDY remotecommand protocol.
type kubernetesSandbox struct {
	cfg       *config.Config
	logger    *slog.Logger
	clientset *kubernetes.Clientset
	restCfg   *rest.Config
	namespace string
	jobName   string
	podName   string
}

func newKubernetesSandbox(cfg *config.Config, logger *slog.Logger) (*kubernetesSandbox, error) {
	restCfg, err := kubeRESTConfig()
	if err != nil {
		return nil, &repairerrors.ConfigError{Component: "kubernetes sandbox", Err: err}
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, &repairerrors.ConfigError{Component: "kubernetes sandbox", Err: err}
	}

	return &kubernetesSandbox{
		cfg:       cfg,
		logger:    logger,
		clientset: clientset,
		restCfg:   restCfg,
		namespace: cfg.Sandbox.KubernetesNamespace,
	}, nil
}

func kubeRESTConfig() (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}

func (k *kubernetesSandbox) Init(ctx context.Context) error {
	k.jobName = fmt.Sprintf("repairagent-%d", time.Now().UnixNano())
	k.podName = ""

	saName := k.jobName + "-sa"
	if err := k.createServiceAccountAndRole(ctx, saName); err != nil {
		return err
	}

	ttl := int32(300)
	backoff := int32(0)
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: k.jobName, Namespace: k.namespace},
		Spec: batchv1.JobSpec{
			TTLSecondsAfterFinished: &ttl,
			BackoffLimit:            &backoff,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{"app": k.jobName}},
				Spec: corev1.PodSpec{
					ServiceAccountName: saName,
					RestartPolicy:      corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:    "sandbox",
							Image:   k.cfg.Sandbox.Image,
							Command: []string{"sleep", "infinity"},
						},
					},
				},
			},
		},
	}

	if _, err := k.clientset.BatchV1().Jobs(k.namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return &repairerrors.TransportError{Target: "kubernetes", Err: err}
	}

	return k.waitForPodRunning(ctx)
}

func (k *kubernetesSandbox) createServiceAccountAndRole(ctx context.Context, saName string) error {
	sa := &corev1.ServiceAccount{ObjectMeta: metav1.ObjectMeta{Name: saName, Namespace: k.namespace}}
	if _, err := k.clientset.CoreV1().ServiceAccounts(k.namespace).Create(ctx, sa, metav1.CreateOptions{}); err != nil {
		return &repairerrors.TransportError{Target: "kubernetes", Err: err}
	}

	role := &rbacv1.Role{
		ObjectMeta: metav1.ObjectMeta{Name: saName, Namespace: k.namespace},
		Rules: []rbacv1.PolicyRule{
			{APIGroups: []string{"batch"}, Resources: []string{"jobs"}, Verbs: []string{"get", "list", "delete"}},
			{APIGroups: []string{""}, Resources: []string{"pods", "pods/exec"}, Verbs: []string{"get", "list", "create"}},
		},
	}
	if _, err := k.clientset.RbacV1().Roles(k.namespace).Create(ctx, role, metav1.CreateOptions{}); err != nil {
		return &repairerrors.TransportError{Target: "kubernetes", Err: err}
	}

	binding := &rbacv1.RoleBinding{
		ObjectMeta: metav1.ObjectMeta{Name: saName, Namespace: k.namespace},
		Subjects:   []rbacv1.Subject{{Kind: "ServiceAccount", Name: saName, Namespace: k.namespace}},
		RoleRef:    rbacv1.RoleRef{APIGroup: "rbac.authorization.k8s.io", Kind: "Role", Name: saName},
	}
	if _, err := k.clientset.RbacV1().RoleBindings(k.namespace).Create(ctx, binding, metav1.CreateOptions{}); err != nil {
		return &repairerrors.TransportError{Target: "kubernetes", Err: err}
	}
	return nil
}

func (k *kubernetesSandbox) waitForPodRunning(ctx context.Context) error {
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		pods, err := k.clientset.CoreV1().Pods(k.namespace).List(ctx, metav1.ListOptions{
			LabelSelector: "app=" + k.jobName,
		})
		if err == nil && len(pods.Items) > 0 {
			pod := pods.Items[0]
			if pod.Status.Phase == corev1.PodRunning {
				k.podName = pod.Name
				k.logger.InfoContext(ctx, "kubernetes sandbox pod running", "pod", k.podName)
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return &repairerrors.TimeoutError{Operation: "kubernetes sandbox init", Err: ctx.Err()}
		case <-time.After(2 * time.Second):
		}
	}
	return &repairerrors.TimeoutError{Operation: "kubernetes sandbox init", Err: fmt.Errorf("pod did not become Running within 120s")}
}

func (k *kubernetesSandbox) RunCommand(ctx context.Context, command string, opts RunOptions) (ExecResult, error) {
	if k.podName == "" {
		return ExecResult{}, fmt.Errorf("sandbox not initialized")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := []string{"sh", "-c", command}

	req := k.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(k.podName).
		Namespace(k.namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Command: argv,
			Stdout:  true,
			Stderr:  true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(k.restCfg, "POST", req.URL())
	if err != nil {
		return ExecResult{}, &repairerrors.TransportError{Target: "kubernetes", Err: err}
	}

	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(runCtx, remotecommand.StreamOptions{Stdout: &stdout, Stderr: &stderr})
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return ExecResult{}, &repairerrors.TimeoutError{Operation: "sandbox.runCommand", Err: err}
		}
		if exitErr, ok := err.(utilexec.ExitError); ok {
			code := exitErr.ExitStatus()
			if code == 127 {
				return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: code}, &repairerrors.CommandNotFoundError{Command: command}
			}
			return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: code}, nil
		}
		return ExecResult{}, &repairerrors.TransportError{Target: "kubernetes", Err: err}
	}

	return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: 0}, nil
}

func (k *kubernetesSandbox) WriteFile(ctx context.Context, path string, content []byte) error {
	encoded := fmt.Sprintf("cat <<'REPAIRAGENT_EOF' > %s\n%s\nREPAIRAGENT_EOF\n", path, content)
	_, err := k.RunCommand(ctx, encoded, RunOptions{Timeout: 30 * time.Second})
	return err
}

func (k *kubernetesSandbox) ReadFile(ctx context.Context, path string) ([]byte, error) {
	result, err := k.RunCommand(ctx, "cat "+path, RunOptions{Timeout: 30 * time.Second})
	if err != nil {
		return nil, err
	}
	return []byte(result.Stdout), nil
}

func (k *kubernetesSandbox) GetResourceStats(ctx context.Context) (*ResourceStats, error) {
	// The metrics-server API is not guaranteed available in every
	// cluster, and this backend makes no client-go call for resource
	// usage: it reports nil, which the orchestrator's resource watcher
	// skips.
	return nil, nil
}

func (k *kubernetesSandbox) Teardown(ctx context.Context) error {
	if k.jobName == "" {
		return nil
	}
	propagation := metav1.DeletePropagationForeground
	err := k.clientset.BatchV1().Jobs(k.namespace).Delete(ctx, k.jobName, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return &repairerrors.TransportError{Target: "kubernetes", Err: err}
	}
	k.jobName = ""
	k.podName = ""
	return nil
}
