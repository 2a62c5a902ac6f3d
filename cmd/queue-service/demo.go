package main

import (
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store/memory"
)

func seedDemo(st *memory.Store) {
	weekdays := models.Schedule{}
	for day := time.Monday; day <= time.Friday; day++ {
		weekdays[day] = models.Window{Opens: "08:00", Closes: "15:00", IsActive: true}
	}

	st.AddService(models.Service{ServiceID: "ktp", Name: "Pelayanan KTP", Prefix: "A", AverageTime: 15, MaxDailyQueue: 100, IsActive: true, Schedule: weekdays})
	st.AddService(models.Service{ServiceID: "kk", Name: "Pelayanan KK", Prefix: "B", AverageTime: 20, MaxDailyQueue: 80, IsActive: true, Schedule: weekdays})
	st.AddService(models.Service{ServiceID: "akta", Name: "Akta Kelahiran", Prefix: "C", AverageTime: 25, MaxDailyQueue: 50, IsActive: true, Schedule: weekdays})

	st.AddOfficer(models.Officer{OfficerID: "petugas-1", Name: "Petugas Loket 1", ServiceID: "ktp", CounterNumber: "1", IsActive: true, IsAvailable: true, MaxConcurrent: 1})
	st.AddOfficer(models.Officer{OfficerID: "petugas-2", Name: "Petugas Loket 2", ServiceID: "ktp", CounterNumber: "2", IsActive: true, IsAvailable: true, MaxConcurrent: 1})
	st.AddOfficer(models.Officer{OfficerID: "petugas-3", Name: "Petugas Loket 3", ServiceID: "kk", CounterNumber: "3", IsActive: true, IsAvailable: true, MaxConcurrent: 1})
	st.AddOfficer(models.Officer{OfficerID: "petugas-4", Name: "Petugas Loket 4", ServiceID: "akta", CounterNumber: "4", IsActive: true, IsAvailable: true, MaxConcurrent: 1})
}
