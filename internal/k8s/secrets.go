package k8s

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// SecretManager implementation. Secret contents never reach the logs; only
// namespace and name are recorded.

func (c *kubernetesClient) GetSecret(ctx context.Context, namespace, name string) (*corev1.Secret, error) {
	c.logOperation("get", namespace, "Secret", name)

	clientset, err := c.getClientset()
	if err != nil {
		return nil, err
	}

	secret, err := clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, upstream("get", describe("Secret", namespace, name), err)
	}
	return secret, nil
}

func (c *kubernetesClient) CreateSecret(ctx context.Context, secret *corev1.Secret, dryRun bool) (*corev1.Secret, error) {
	c.logOperation("create", secret.Namespace, "Secret", secret.Name)

	clientset, err := c.getClientset()
	if err != nil {
		return nil, err
	}

	created, err := clientset.CoreV1().Secrets(secret.Namespace).Create(ctx, secret, metav1.CreateOptions{DryRun: dryRunFlag(dryRun)})
	if err != nil {
		return nil, upstream("create", describe("Secret", secret.Namespace, secret.Name), err)
	}
	return created, nil
}

func (c *kubernetesClient) UpdateSecret(ctx context.Context, secret *corev1.Secret, dryRun bool) (*corev1.Secret, error) {
	c.logOperation("update", secret.Namespace, "Secret", secret.Name)

	clientset, err := c.getClientset()
	if err != nil {
		return nil, err
	}

	updated, err := clientset.CoreV1().Secrets(secret.Namespace).Update(ctx, secret, metav1.UpdateOptions{DryRun: dryRunFlag(dryRun)})
	if err != nil {
		return nil, upstream("update", describe("Secret", secret.Namespace, secret.Name), err)
	}
	return updated, nil
}
