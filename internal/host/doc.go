// Package host предоставляет цикл тиков, на котором живут менеджеры задач.
//
// Менеджер задач не потокобезопасен, поэтому всё, что его касается, выполняется
// на одной горутине Loop:
//
//	loop := host.New(host.Config{Interval: 50 * time.Millisecond, Logger: log})
//	mgr, _ := taskmanager.New(loop)
//	loop.Start()
//	defer loop.Stop()
//
//	// из HTTP-хендлера или бота
//	err := loop.Call(ctx, func() error {
//	    mgr.Enqueue(task)
//	    return nil
//	})
//
// Cron-фиды (AddCronFeed) срабатывают на горутине cron, но их колбэк
// перекладывается на цикл через Post.
package host
