package http

import (
	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	"github.com/orris-inc/docpilot/internal/application/billing/usecases"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/infrastructure/config"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// allUseCases holds every use case exposed over HTTP, CLI or the scheduler.
type allUseCases struct {
	createCheckout  *usecases.CreateCheckoutUseCase
	processWebhook  *usecases.ProcessWebhookUseCase
	providerNotify  *usecases.ProviderNotifyUseCase // nil without WeChat Pay
	consumePoints   *usecases.ConsumePointsUseCase
	adjustPoints    *usecases.AdjustPointsUseCase
	pointBalance    *usecases.GetPointBalanceUseCase
	pointFlows      *usecases.ListPointFlowsUseCase
	getEntitlements *usecases.GetEntitlementsUseCase
	listPlans       *usecases.ListPlansUseCase
	managePlans     *usecases.ManagePlansUseCase
	syncCatalog     *usecases.SyncPlanCatalogUseCase
	expireOrders    *usecases.ExpireStaleOrdersUseCase
	expireSubs      *usecases.ExpireSubscriptionsUseCase
	relayOutbox     *usecases.RelayOutboxUseCase
}

type useCaseDeps struct {
	cfg          *config.Config
	log          logger.Interface
	repos        *repositories
	gateways     *paymentgateway.Registry
	notifyParser paymentgateway.NotificationParser
	processor    *usecases.PaymentEventProcessor
	reader       usecases.EntitlementReader
	invalidator  usecases.EntitlementInvalidator
	publisher    usecases.EventPublisher
	renderer     usecases.DescriptionRenderer
}

func newUseCases(d useCaseDeps) *allUseCases {
	repos := d.repos
	log := d.log
	billingCfg := d.cfg.Billing

	managePlans := usecases.NewManagePlansUseCase(repos.plans, repos.entitlements, repos.subs, d.invalidator, log.Named("plans"))

	ucs := &allUseCases{
		createCheckout: usecases.NewCreateCheckoutUseCase(
			repos.orders,
			repos.plans,
			d.gateways,
			vo.ParseProvider(billingCfg.DefaultProvider),
			billingCfg.ReturnURL,
			billingCfg.CheckoutTimeout(),
			log.Named("checkout"),
		),
		processWebhook:  usecases.NewProcessWebhookUseCase(billingCfg.WebhookSecret, d.processor, repos.auditLogs, log.Named("webhook")),
		consumePoints:   usecases.NewConsumePointsUseCase(repos.ledger, log.Named("points")),
		adjustPoints:    usecases.NewAdjustPointsUseCase(repos.ledger, log.Named("points")),
		pointBalance:    usecases.NewGetPointBalanceUseCase(repos.ledger),
		pointFlows:      usecases.NewListPointFlowsUseCase(repos.ledger),
		getEntitlements: usecases.NewGetEntitlementsUseCase(d.reader),
		listPlans:       usecases.NewListPlansUseCase(repos.plans, repos.entitlements, d.renderer, log.Named("plans")),
		managePlans:     managePlans,
		syncCatalog:     usecases.NewSyncPlanCatalogUseCase(repos.txManager, repos.plans, managePlans, log.Named("catalog")),
		expireOrders: usecases.NewExpireStaleOrdersUseCase(
			repos.txManager, repos.orders, repos.outbox, billingCfg.StaleOrderAge(), log.Named("sweep"),
		),
		expireSubs: usecases.NewExpireSubscriptionsUseCase(
			repos.txManager, repos.subs, repos.outbox, d.invalidator, log.Named("sweep"),
		),
		relayOutbox: usecases.NewRelayOutboxUseCase(repos.outbox, d.publisher, log.Named("outbox")),
	}

	if d.notifyParser != nil {
		ucs.providerNotify = usecases.NewProviderNotifyUseCase(d.notifyParser, d.processor, repos.auditLogs, log.Named("wechatpay_notify"))
	}
	return ucs
}
