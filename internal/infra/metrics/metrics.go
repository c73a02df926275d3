package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bomstock_orders_committed_total",
		Help: "Заказы, успешно списавшие материалы и записанные в историю.",
	})

	OrdersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bomstock_orders_rejected_total",
		Help: "Заказы, отклонённые из-за нехватки материалов.",
	})

	OrdersFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bomstock_orders_failed_total",
		Help: "Заказы, упавшие на фазе коммита.",
	})

	StockAdjustments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bomstock_stock_adjustments_total",
		Help: "Ручные корректировки остатков.",
	})
)
