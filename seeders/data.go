package seeders

import "laundry-delivery/pkg/constants"

// usersData - служебные учётные записи для запуска и ручной проверки.
var usersData = []struct {
	Fio         string
	PhoneNumber string
	Role        constants.Role
}{
	{Fio: "Администратор", PhoneNumber: "+992900000001", Role: constants.RoleAdmin},
	{Fio: "Оператор прачечной", PhoneNumber: "+992900000002", Role: constants.RoleStaff},
	{Fio: "Водитель 1", PhoneNumber: "+992900000003", Role: constants.RoleDriver},
	{Fio: "Водитель 2", PhoneNumber: "+992900000004", Role: constants.RoleDriver},
	{Fio: "Тестовый клиент", PhoneNumber: "+992900000005", Role: constants.RoleCustomer},
}
