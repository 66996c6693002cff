package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobDeleter deletes a blob with a storage account key.
type BlobDeleter interface {
	DeleteBlob(ctx context.Context, account, key, container, blob string) error
}

// ListStorageKeys returns the access keys of a storage account in the
// cluster's resource group.
func (p *Provider) ListStorageKeys(ctx context.Context, account string) ([]string, error) {
	resp, err := p.accounts.ListKeys(ctx, p.resourceGroup, account, nil)
	if err != nil {
		return nil, notFound(fmt.Errorf("list keys of storage account %s: %w", account, err))
	}
	var keys []string
	for _, k := range resp.Keys {
		if k != nil && k.Value != nil {
			keys = append(keys, *k.Value)
		}
	}
	return keys, nil
}

// DeleteBlob deletes the blob; a blob or container that is already gone
// counts as deleted.
func (p *Provider) DeleteBlob(ctx context.Context, account, key, container, blob string) error {
	return p.blobs.DeleteBlob(ctx, account, key, container, blob)
}

type sharedKeyBlobs struct{}

func (sharedKeyBlobs) DeleteBlob(ctx context.Context, account, key, container, blob string) error {
	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return fmt.Errorf("storage account %s credential: %w", account, err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(fmt.Sprintf("https://%s.blob.core.windows.net/", account), cred, nil)
	if err != nil {
		return fmt.Errorf("storage account %s client: %w", account, err)
	}
	if _, err := client.DeleteBlob(ctx, container, blob, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil
		}
		return fmt.Errorf("delete blob %s/%s/%s: %w", account, container, blob, err)
	}
	return nil
}
