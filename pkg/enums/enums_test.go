package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("out_for_delivery")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != OrderStatusOutForDelivery {
		t.Fatalf("unexpected status %s", status)
	}
	if _, err := ParseOrderStatus("in_transit"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled} {
		if !status.IsTerminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	for _, status := range []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusOutForDelivery} {
		if status.IsTerminal() {
			t.Fatalf("expected %s to be non-terminal", status)
		}
	}
}

func TestDeliveryStatusValidity(t *testing.T) {
	if !DeliveryStatusFailed.IsValid() {
		t.Fatal("failed should be valid")
	}
	if DeliveryStatus("picked_up").IsValid() {
		t.Fatal("picked_up is not a dispatcher state")
	}
}

func TestActorRoleOperator(t *testing.T) {
	if ActorRoleCustomer.IsOperator() || ActorRoleDelivery.IsOperator() {
		t.Fatal("customer and delivery staff are not operators")
	}
	if !ActorRoleAdmin.IsOperator() {
		t.Fatal("admin should be an operator")
	}
}

func TestParseOutboxEventType(t *testing.T) {
	if _, err := ParseOutboxEventType("low_stock_signal"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseOutboxEventType("license_expired"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
}
