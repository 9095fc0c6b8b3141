package stock

import "fmt"

// Key returns the canonical stock key for a product.
func Key(productID uint) string {
	return fmt.Sprintf("order_admin:stock:%d", productID)
}

// ReleaseLockKey marks whether a request id already got its stock back.
func ReleaseLockKey(requestID string) string {
	return fmt.Sprintf("order_admin:stock:released:%s", requestID)
}
