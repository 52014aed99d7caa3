package rewardconfig

import "go.uber.org/fx"

var Module = fx.Module("rewardconfig.service",
	fx.Provide(NewService),
	fx.Invoke(RegisterRoutes),
)
