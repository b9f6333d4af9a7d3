// Package saga implements the order saga as a choreography of services on
// one event bus.
//
// The Producer emits OrderCreated. Inventory reserves stock and answers
// with InventoryReserved or InventoryFailed. Payment reacts to
// InventoryReserved with PaymentSucceeded or PaymentFailed. On
// PaymentFailed, Inventory releases the reservation and emits
// InventoryFailed. StatusProjector folds every event into an order status.
// No service calls another; they only share the bus.
//
// System wires all of this together:
//
//	sys, err := saga.New(saga.Config{Decider: saga.Approve})
//	if err != nil {
//		return err
//	}
//	defer sys.Shutdown()
//	_ = sys.CreateOrder(ctx, "o1")
package saga
